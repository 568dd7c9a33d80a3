package kaggle

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T, archive []byte) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /datasets/list", func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", key)
		assert.Equal(t, "votes", r.URL.Query().Get("sortBy"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"ref":           "alice/titanic",
				"title":         "Titanic",
				"subtitle":      "Passenger survival",
				"totalBytes":    0,
				"downloadCount": 42,
				"voteCount":     7,
				"licenseName":   "CC0",
				"tags":          []map[string]string{{"name": "classification"}},
			},
			{"ref": "bob/broken", "title": "Broken"},
		})
	})

	mux.HandleFunc("GET /datasets/list/files/alice/titanic", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"datasetFiles": []map[string]any{
				{"name": "train.csv", "totalBytes": 100, "creationDate": "2024-01-01"},
				{"name": "notes.txt", "totalBytes": 20},
			},
		})
	})

	mux.HandleFunc("GET /datasets/list/files/bob/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	mux.HandleFunc("GET /datasets/download/alice/titanic", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{Username: "alice", Key: "secret", BaseURL: srv.URL}, nil)
	return srv, client
}

func TestSearch(t *testing.T) {
	_, client := newTestServer(t, nil)

	result, err := client.Search(context.Background(), "titanic", 0, "bogus-sort")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, "titanic", result.Query)
	require.Len(t, result.Datasets, 2)

	ds := result.Datasets[0]
	assert.Equal(t, "alice/titanic", ds.Ref)
	assert.Equal(t, "https://www.kaggle.com/datasets/alice/titanic", ds.URL)
	assert.Equal(t, []string{"classification"}, ds.Tags)
	assert.Equal(t, 2, ds.FileCount)
	assert.Equal(t, []string{"csv", "txt"}, ds.FileTypes)
	assert.Equal(t, int64(120), ds.Size)

	// Detail failure degrades to an entry without file info.
	broken := result.Datasets[1]
	assert.Equal(t, "bob/broken", broken.Ref)
	assert.Equal(t, 0, broken.FileCount)
	assert.Empty(t, broken.FileTypes)
}

func TestFiles(t *testing.T) {
	_, client := newTestServer(t, nil)

	files, err := client.Files(context.Background(), "alice/titanic")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "train.csv", files[0].Name)
	assert.Equal(t, int64(100), files[0].Size)
	assert.Equal(t, "2024-01-01", files[0].CreationDate)
}

func TestFiles_InvalidRef(t *testing.T) {
	_, client := newTestServer(t, nil)

	_, err := client.Files(context.Background(), "not-a-ref")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/dataset")
}

func TestDownload(t *testing.T) {
	archive := buildZip(t, map[string]string{"train.csv": "a,b\n1,2\n"})
	_, client := newTestServer(t, archive)

	var buf bytes.Buffer
	name, err := client.Download(context.Background(), "alice/titanic", &buf)
	require.NoError(t, err)
	assert.Equal(t, "alice_titanic.zip", name)
	assert.Equal(t, archive, buf.Bytes())
}

func TestPreview(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"data/train.csv": "age,label\n34,yes\n51,no\n48,yes\n",
		"readme.md":      "not tabular",
	})
	_, client := newTestServer(t, archive)

	result, err := client.Preview(context.Background(), "alice/titanic", "", 2)
	require.NoError(t, err)
	assert.Equal(t, "alice/titanic", result.DatasetRef)
	assert.Equal(t, 1, result.FilesProcessed)
	require.Len(t, result.Previews, 1)

	p := result.Previews[0]
	assert.Equal(t, "train.csv", p.FileName)
	assert.Equal(t, "data/train.csv", p.FilePath)
	assert.Equal(t, []string{"age", "label"}, p.Columns)
	assert.Equal(t, []int{2, 2}, p.Shape)
	assert.Equal(t, "int64", p.Dtypes["age"])
	assert.Equal(t, "object", p.Dtypes["label"])
	require.Len(t, p.Data, 2)
	assert.Equal(t, "34", p.Data[0]["age"])
}

func TestPreview_NamedFile(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"train.csv": "a\n1\n",
		"test.csv":  "b\n2\n",
	})
	_, client := newTestServer(t, archive)

	result, err := client.Preview(context.Background(), "alice/titanic", "test.csv", 10)
	require.NoError(t, err)
	require.Len(t, result.Previews, 1)
	assert.Equal(t, "test.csv", result.Previews[0].FileName)
	assert.Equal(t, []string{"b"}, result.Previews[0].Columns)
}

func TestPreview_UnparseableFileCarriesError(t *testing.T) {
	archive := buildZip(t, map[string]string{"empty.csv": ""})
	_, client := newTestServer(t, archive)

	result, err := client.Preview(context.Background(), "alice/titanic", "empty.csv", 10)
	require.NoError(t, err)
	require.Len(t, result.Previews, 1)
	assert.NotEmpty(t, result.Previews[0].Error)
	assert.Equal(t, 0, result.FilesProcessed)
}
