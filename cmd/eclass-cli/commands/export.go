package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"eclass-backend/lib/scrapers/eclass/extract"
	"eclass-backend/lib/serviceutil"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/spf13/cobra"
)

var exportDir *string

func init() {
	exportDir = exportCmd.Flags().String("out", "export", "Directory to write markdown files to.")
	rootCmd.AddCommand(exportCmd)
}

var unsafeFilename = regexp.MustCompile(`[^\w\-가-힣 ]+`)

func recordFilename(menu extract.MenuType, record extract.Record) string {
	title := unsafeFilename.ReplaceAllString(record.Title, "")
	title = strings.TrimSpace(title)
	if title == "" {
		title = record.ArticleId
	}
	return fmt.Sprintf("%s_%s.md", menu, title)
}

var exportCmd = &cobra.Command{
	Use:   "export <course name>",
	Short: "Exports every record of a course's list menus as markdown.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client, _ := createClient(ctx)
		defer client.Close()

		courses, err := client.Courses(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list courses", err)
		}
		course, similarity := fuzzyCourse(args[0], courses)
		if similarity < 0.6 {
			serviceutil.Fatal("no such course", fmt.Errorf("nothing matched %q", args[0]))
		}
		slog.Info("exporting course", "name", course.Name, "code", course.Code)

		courseUrl, err := client.EnterCourse(ctx, course.Id)
		if err != nil {
			serviceutil.Fatal("failed to enter course", err)
		}
		menus, err := client.Menus(ctx, courseUrl)
		if err != nil {
			serviceutil.Fatal("failed to fetch menus", err)
		}

		if err := os.MkdirAll(*exportDir, 0755); err != nil {
			serviceutil.Fatal("failed to create export dir", err)
		}
		converter := md.NewConverter("", true, nil)

		exported := 0
		for _, entry := range menus {
			records, err := client.FetchPage(ctx, course, entry.Type, 1)
			if err != nil {
				slog.Warn("skipping menu", "menu", entry.Type.String(), "err", err)
				continue
			}

			for _, record := range records {
				detail, err := client.FetchDetail(ctx, record)
				if err != nil {
					slog.Warn("skipping record", "title", record.Title, "err", err)
					continue
				}

				content, err := converter.ConvertString(detail.ContentHtml)
				if err != nil || strings.TrimSpace(content) == "" {
					// the cleaned text is a readable fallback
					content = detail.Content
				}

				var out strings.Builder
				fmt.Fprintf(&out, "# %s\n\n", record.Title)
				fmt.Fprintf(&out, "- author: %s\n- published: %s\n- views: %s\n\n", record.Author, record.Date, record.Views)
				out.WriteString(content)
				out.WriteString("\n")
				if len(detail.Attachments) > 0 {
					out.WriteString("\n## Attachments\n\n")
					for _, a := range detail.Attachments {
						fmt.Fprintf(&out, "- %s (%s)\n", a.Name, a.Size)
					}
				}

				path := filepath.Join(*exportDir, recordFilename(entry.Type, record))
				if err := os.WriteFile(path, []byte(out.String()), 0644); err != nil {
					slog.Warn("failed to write export file", "path", path, "err", err)
					continue
				}
				exported++
			}
		}

		slog.Info("export finished", "records", exported, "dir", *exportDir)
	},
}
