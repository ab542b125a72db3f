package reporting

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const pageStyle = `body{font-family:sans-serif;max-width:960px;margin:2em auto;color:#222}
table{border-collapse:collapse;margin:1em 0}
th,td{border:1px solid #ccc;padding:4px 10px;text-align:right}
th:first-child,td:first-child{text-align:left}
img{max-width:100%}`

// BuildMarkdown writes the detailed report of s as Markdown. Figures are
// embedded as base64 data URLs so the result is a single self-contained
// document.
func BuildMarkdown(s *models.RunSummary, title string) string {
	var b strings.Builder
	order := MetricOrder(s)

	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(title))

	official := s.Official()
	if official.Defined() {
		fmt.Fprintf(&b, "**Official score (%s):** %s at %s confidence, %s\n\n",
			s.OfficialScore, FormatStatistic(official), FormatConfidence(official.Confidence), InterpretScore(*official.Mean))
	} else {
		fmt.Fprintf(&b, "**Official score (%s):** n/a\n\n", s.OfficialScore)
	}
	b.WriteString(printer.Sprintf("Episodes scored: %d of %d. Interval: %s.\n\n", s.Scored(), s.Episodes, s.Interval))

	b.WriteString("## Overall\n\n")
	b.WriteString("| Metric | Mean | CI half width | Episodes | Interpretation |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, label := range order {
		st := s.Overall[label]
		if !st.Defined() {
			fmt.Fprintf(&b, "| %s | n/a | n/a | 0 | |\n", label)
			continue
		}
		b.WriteString(printer.Sprintf("| %s | %.4f | %.4f | %d | %s |\n",
			label, *st.Mean, *st.HalfWidth, st.N, InterpretScore(*st.Mean)))
	}
	b.WriteString("\n")

	if len(s.Groups) > 0 {
		b.WriteString("## Per dataset\n\n| Dataset | Episodes |")
		for _, label := range order {
			fmt.Fprintf(&b, " %s |", label)
		}
		b.WriteString("\n|---|---|")
		b.WriteString(strings.Repeat("---|", len(order)))
		b.WriteString("\n")
		for _, g := range s.Groups {
			b.WriteString(printer.Sprintf("| %s | %d |", escapeMarkdown(g.Name), g.Episodes))
			for _, label := range order {
				fmt.Fprintf(&b, " %s |", FormatStatistic(g.Stats[label]))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(s.Failed) > 0 {
		b.WriteString("## Failed episodes\n\n")
		for _, f := range s.Failed {
			fmt.Fprintf(&b, "- `%s`: %s\n", episodeID(f.Group, f.Episode), escapeMarkdown(f.Error))
		}
		b.WriteString("\n")
	}

	if len(s.Artifacts) > 0 {
		b.WriteString("## Figures\n\n")
		for _, a := range s.Artifacts {
			fmt.Fprintf(&b, "### %s: %s\n\n", a.Metric, escapeMarkdown(a.Title))
			if a.Data == "" {
				fmt.Fprintf(&b, "Image not embedded, see `%s`.\n\n", a.Path)
				continue
			}
			fmt.Fprintf(&b, "![%s %s](data:image/png;base64,%s)\n\n", a.Metric, a.Kind, a.Data)
		}
	}

	return b.String()
}

// RenderHTML converts the Markdown report into a standalone HTML page.
func RenderHTML(s *models.RunSummary, title string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(BuildMarkdown(s, title)), &body); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n<style>\n%s\n</style>\n</head>\n<body>\n", html.EscapeString(title), pageStyle)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// WriteHTML renders the report and writes it to path.
func WriteHTML(s *models.RunSummary, title, path string) error {
	data, err := RenderHTML(s, title)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &models.ResourceError{Op: "write report", Path: path, Err: err}
	}
	return nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
