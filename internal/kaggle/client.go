// Package kaggle is a client for the Kaggle datasets REST API: search,
// file listings, zip downloads, and tabular previews.
package kaggle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the Kaggle public API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

const defaultTimeout = 120 * time.Second

// Sort orders accepted by the search endpoint. Anything else falls back to
// "votes".
var validSortOptions = map[string]bool{
	"hottest":   true,
	"votes":     true,
	"updated":   true,
	"active":    true,
	"published": true,
}

// Config holds credentials and transport settings for the Kaggle client.
type Config struct {
	Username   string
	Key        string
	BaseURL    string        // Optional (tests)
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// Client talks to the Kaggle API with basic-auth credentials.
type Client struct {
	baseURL  string
	username string
	key      string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a Kaggle API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		key:      cfg.Key,
		client:   httpClient,
		logger:   logger.With("component", "kaggle"),
	}
}

// Dataset is one search result, enriched with file details when available.
type Dataset struct {
	Ref           string   `json:"ref"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	Size          int64    `json:"size"`
	DownloadCount int      `json:"downloadCount"`
	VoteCount     int      `json:"voteCount"`
	LastUpdated   string   `json:"lastUpdated,omitempty"`
	LicenseName   string   `json:"licenseName"`
	Tags          []string `json:"tags"`
	FileTypes     []string `json:"fileTypes"`
	FileCount     int      `json:"fileCount"`
}

// SearchResult is the payload of a dataset search.
type SearchResult struct {
	Datasets []Dataset `json:"datasets"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Query    string    `json:"query"`
}

// listedDataset is the wire shape of one /datasets/list entry.
type listedDataset struct {
	Ref           string `json:"ref"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Description   string `json:"description"`
	TotalBytes    int64  `json:"totalBytes"`
	DownloadCount int    `json:"downloadCount"`
	VoteCount     int    `json:"voteCount"`
	LastUpdated   string `json:"lastUpdated"`
	LicenseName   string `json:"licenseName"`
	Tags          []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// Search queries datasets. Invalid sort orders fall back to "votes"; pages
// start at 1. File details are fetched per result and degrade gracefully: a
// failed detail lookup leaves that entry without file information rather than
// failing the search.
func (c *Client) Search(ctx context.Context, query string, page int, sortBy string) (*SearchResult, error) {
	if !validSortOptions[sortBy] {
		sortBy = "votes"
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("sortBy", sortBy)

	var listed []listedDataset
	if err := c.getJSON(ctx, "/datasets/list", params, &listed); err != nil {
		return nil, fmt.Errorf("dataset search failed: %w", err)
	}

	result := &SearchResult{Page: page, Query: query, Datasets: make([]Dataset, 0, len(listed))}
	for _, d := range listed {
		ds := Dataset{
			Ref:           d.Ref,
			Title:         d.Title,
			Subtitle:      d.Subtitle,
			Description:   d.Description,
			URL:           "https://www.kaggle.com/datasets/" + d.Ref,
			Size:          d.TotalBytes,
			DownloadCount: d.DownloadCount,
			VoteCount:     d.VoteCount,
			LastUpdated:   d.LastUpdated,
			LicenseName:   d.LicenseName,
			Tags:          []string{},
			FileTypes:     []string{},
		}
		for _, tag := range d.Tags {
			if tag.Name != "" {
				ds.Tags = append(ds.Tags, tag.Name)
			}
		}

		files, err := c.Files(ctx, d.Ref)
		if err != nil {
			c.logger.Warn("failed to get details for dataset", "ref", d.Ref, "error", err)
		} else {
			ds.FileCount = len(files)
			seen := map[string]bool{}
			var size int64
			for _, f := range files {
				size += f.Size
				ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
				if ext != "" && !seen[ext] {
					seen[ext] = true
					ds.FileTypes = append(ds.FileTypes, ext)
				}
			}
			if size > 0 {
				ds.Size = size
			}
		}
		result.Datasets = append(result.Datasets, ds)
	}
	result.Total = len(result.Datasets)
	return result, nil
}

// FileInfo describes one file in a dataset.
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	CreationDate string `json:"creation_date,omitempty"`
}

// filesResponse is the wire shape of /datasets/list/files.
type filesResponse struct {
	DatasetFiles []struct {
		Name         string `json:"name"`
		TotalBytes   int64  `json:"totalBytes"`
		CreationDate string `json:"creationDate"`
	} `json:"datasetFiles"`
}

// Files lists a dataset's files without downloading it.
func (c *Client) Files(ctx context.Context, ref string) ([]FileInfo, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	var resp filesResponse
	if err := c.getJSON(ctx, "/datasets/list/files/"+ref, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list files for %s: %w", ref, err)
	}

	files := make([]FileInfo, 0, len(resp.DatasetFiles))
	for _, f := range resp.DatasetFiles {
		files = append(files, FileInfo{Name: f.Name, Size: f.TotalBytes, CreationDate: f.CreationDate})
	}
	return files, nil
}

// Download streams the dataset's zip archive into w and returns the
// suggested attachment filename.
func (c *Client) Download(ctx context.Context, ref string, w io.Writer) (string, error) {
	if err := validateRef(ref); err != nil {
		return "", err
	}

	resp, err := c.get(ctx, "/datasets/download/"+ref, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to stream %s: %w", ref, err)
	}
	return strings.ReplaceAll(ref, "/", "_") + ".zip", nil
}

// validateRef requires the owner/dataset reference form.
func validateRef(ref string) error {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid dataset reference %q, expected owner/dataset", ref)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("kaggle API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
