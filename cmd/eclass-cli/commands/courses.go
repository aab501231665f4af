package commands

import (
	"os"

	"eclass-backend/lib/scrapers/eclass/extract"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(coursesCmd)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printCourses(courses []extract.Course) {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Name", "Code", "Schedule"})
	for i, c := range courses {
		t.AppendRow(table.Row{i + 1, c.Name, c.Code, c.Schedule})
	}
	t.Render()
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Logs in and lists your enrolled courses.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client, _ := createClient(ctx)
		defer client.Close()

		courses, err := client.Courses(ctx)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}
		printCourses(courses)
	},
}
