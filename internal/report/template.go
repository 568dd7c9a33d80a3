package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// latexReplacer escapes LaTeX special characters in untrusted values.
var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// Escape makes a value safe for interpolation into the LaTeX source.
func Escape(s string) string {
	return latexReplacer.Replace(s)
}

// The template uses << >> delimiters because LaTeX is saturated with braces.
var reportTemplate = template.Must(template.New("report").
	Delims("<<", ">>").
	Funcs(template.FuncMap{
		"esc":  Escape,
		"cols": func(n int) string { return strings.Repeat("r", n) },
	}).
	Parse(`\documentclass{article}
\usepackage{graphicx}
\usepackage{booktabs}
\usepackage[margin=2.5cm]{geometry}
\begin{document}

\title{Dataset Analysis Report: <<esc .Title>>}
\author{dataspect}
\date{<<esc .Generated>>}
\maketitle

\section{Dataset}
Job \texttt{<<esc .JobID>>} analyzed \textbf{<<esc .Title>>}:
<<.Rows>> rows and <<.Cols>> columns.

<<if .Columns>>Columns: <<range $i, $c := .Columns>><<if $i>>, <<end>>\texttt{<<esc $c>>}<<end>>.<<end>>

<<if .Stats>>
\section{Descriptive Statistics}
\begin{tabular}{l<<cols (len .StatLabels)>>}
\toprule
Column<<range .StatLabels>> & <<esc .>><<end>> \\
\midrule
<<range .Stats>><<esc .Column>><<range .Values>> & <<.>><<end>> \\
<<end>>\bottomrule
\end{tabular}
<<end>>

<<if .CorrRows>>
\section{Correlation Matrix}
\begin{tabular}{l<<cols (len .CorrCols)>>}
\toprule
 <<range .CorrCols>>& <<esc .>> <<end>>\\
\midrule
<<range .CorrRows>><<esc .Column>><<range .Values>> & <<.>><<end>> \\
<<end>>\bottomrule
\end{tabular}
<<end>>

<<if .Features>>
\section{Feature Importance}
\begin{itemize}
<<range .Features>>\item \texttt{<<esc .Name>>}: <<.Importance>>
<<end>>\end{itemize}
<<end>>

\section{Insights}
<<esc .Insights.Summary>>

<<if .Insights.KeyColumns>>Key columns: <<range $i, $c := .Insights.KeyColumns>><<if $i>>, <<end>>\texttt{<<esc $c>>}<<end>>.<<end>>

<<esc .Insights.CorrelationInsights>>

<<if .Insights.Recommendations>>
\subsection{Recommendations}
\begin{itemize}
<<range .Insights.Recommendations>>\item <<esc .>>
<<end>>\end{itemize}
<<end>>

<<if .HasHisto>>
\section{Distribution}
\begin{figure}[h]
\centering
\includegraphics[width=0.85\textwidth]{\detokenize{<<.Histogram>>}}
\end{figure}
<<end>>

\end{document}
`))

// RenderTex fills the report template.
func RenderTex(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, d); err != nil {
		return nil, fmt.Errorf("failed to fill report template: %w", err)
	}
	return buf.Bytes(), nil
}
