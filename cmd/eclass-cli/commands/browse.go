package commands

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"eclass-backend/lib/htmlutil"
	"eclass-backend/lib/scrapers/eclass/extract"
	"eclass-backend/lib/scrapers/eclass/view"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(browseCmd)
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactively walks courses, menus and records.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client, _ := createClient(ctx)
		defer client.Close()

		stdin := bufio.NewScanner(os.Stdin)
		for {
			courses, err := client.Courses(ctx)
			if err != nil {
				cmd.PrintErrln(err)
				return
			}
			printCourses(courses)

			course, ok := pickCourse(stdin, courses)
			if !ok {
				return
			}
			browseCourse(ctx, client, stdin, course)
		}
	},
}

// pickCourse accepts either a row number or a (possibly misspelled)
// course name. 0 or an empty line quits.
func pickCourse(stdin *bufio.Scanner, courses []extract.Course) (extract.Course, bool) {
	for {
		fmt.Print("\ncourse number or name (0 to quit): ")
		if !stdin.Scan() {
			return extract.Course{}, false
		}
		input := strings.TrimSpace(stdin.Text())
		if input == "" || input == "0" {
			return extract.Course{}, false
		}

		if n, err := strconv.Atoi(input); err == nil {
			if n >= 1 && n <= len(courses) {
				return courses[n-1], true
			}
			fmt.Println("no course with that number")
			continue
		}

		best, similarity := fuzzyCourse(input, courses)
		if similarity < 0.6 {
			fmt.Println("no course matches that name")
			continue
		}
		return best, true
	}
}

func fuzzyCourse(query string, courses []extract.Course) (extract.Course, float64) {
	var best extract.Course
	var bestSimilarity float64
	for _, c := range courses {
		similarity := matchr.JaroWinkler(strings.ToLower(query), strings.ToLower(c.Name), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = c
		}
	}
	return best, bestSimilarity
}

func browseCourse(ctx context.Context, client view.Client, stdin *bufio.Scanner, course extract.Course) {
	courseUrl, err := client.EnterCourse(ctx, course.Id)
	if err != nil {
		fmt.Println("could not enter course:", err)
		return
	}
	menus, err := client.Menus(ctx, courseUrl)
	if err != nil {
		fmt.Println("could not fetch menus:", err)
		return
	}
	if len(menus) == 0 {
		fmt.Println("this course has no enabled menus")
		return
	}

	// stable display order over the closed menu set
	var ordered []extract.MenuEntry
	for _, t := range extract.MenuTypes() {
		if entry, ok := menus[t]; ok {
			ordered = append(ordered, entry)
		}
	}

	for {
		t := newTable()
		t.AppendHeader(table.Row{"#", "Menu", "Type"})
		for i, entry := range ordered {
			t.AppendRow(table.Row{i + 1, entry.Name, entry.Type.String()})
		}
		t.Render()

		fmt.Print("\nmenu number (0 to go back): ")
		if !stdin.Scan() {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(stdin.Text()))
		if err != nil || n < 0 || n > len(ordered) {
			fmt.Println("enter a listed number")
			continue
		}
		if n == 0 {
			return
		}

		handleMenu(ctx, client, stdin, course, ordered[n-1])
	}
}

// handleMenu dispatches on the closed menu-type set. Paginated menus run
// the list pipeline, page-only menus print their cleaned body, everything
// else falls through to the default handler.
func handleMenu(ctx context.Context, client view.Client, stdin *bufio.Scanner, course extract.Course, entry extract.MenuEntry) {
	switch entry.Type {
	case extract.MenuNotice, extract.MenuLectureMaterial, extract.MenuAssignment,
		extract.MenuTeamProject, extract.MenuExam, extract.MenuOnlineLecture:
		browseList(ctx, client, stdin, course, entry)
	case extract.MenuPlan, extract.MenuAttendance:
		printRawPage(ctx, client, entry)
	default:
		fmt.Printf("no handler for menu %s\n", entry.Type)
	}
}

func browseList(ctx context.Context, client view.Client, stdin *bufio.Scanner, course extract.Course, entry extract.MenuEntry) {
	page := 1
	for {
		records, err := client.FetchPage(ctx, course, entry.Type, page)
		if err != nil {
			fmt.Println("could not fetch list:", err)
			return
		}
		if len(records) == 0 {
			fmt.Println("no records on this page")
			return
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "Title", "Author", "Views", "Date"})
		for i, r := range records {
			t.AppendRow(table.Row{i + 1, r.Title, r.Author, r.Views, r.Date})
		}
		t.Render()

		fmt.Print("\nrecord number (n for next page, 0 to go back): ")
		if !stdin.Scan() {
			return
		}
		input := strings.TrimSpace(stdin.Text())
		if input == "n" {
			page++
			continue
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 0 || n > len(records) {
			fmt.Println("enter a listed number")
			continue
		}
		if n == 0 {
			return
		}

		showRecord(ctx, client, stdin, course, records[n-1])
	}
}

func showRecord(ctx context.Context, client view.Client, stdin *bufio.Scanner, course extract.Course, record extract.Record) {
	detail, err := client.FetchDetail(ctx, record)
	if err != nil {
		fmt.Println("could not fetch detail:", err)
		return
	}

	fmt.Printf("\n=== %s ===\n", record.Title)
	fmt.Printf("author: %s  published: %s  views: %s\n\n", record.Author, record.Date, record.Views)
	if detail.Content == "" {
		fmt.Println("(content unavailable)")
	} else {
		fmt.Println(detail.Content)
	}

	attachments, err := client.ResolveAttachments(ctx, course, record)
	if err != nil {
		fmt.Println("could not resolve attachments:", err)
		return
	}
	if len(attachments) == 0 {
		fmt.Println("\nno attachments")
		return
	}

	fmt.Println("\nattachments:")
	for i, a := range attachments {
		fmt.Printf("%d. %s (%s)\n", i+1, a.Name, a.Size)
	}

	fmt.Print("\nattachment number to download (0 to skip): ")
	if !stdin.Scan() {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(stdin.Text()))
	if err != nil || n < 1 || n > len(attachments) {
		return
	}
	path, err := client.Download(ctx, attachments[n-1], "downloads")
	if err != nil {
		fmt.Println("could not download:", err)
		return
	}
	fmt.Println("saved to", path)
}

func printRawPage(ctx context.Context, client view.Client, entry extract.MenuEntry) {
	body, err := client.Core.Get(ctx, entry.Url)
	if err != nil {
		fmt.Println("could not fetch page:", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		fmt.Println("could not parse page:", err)
		return
	}

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		fmt.Println("(empty page)")
		return
	}
	fmt.Println(text)

	anchors := htmlutil.GetAnchors(ctx, doc.Find("a[href]"))
	if len(anchors) == 0 {
		return
	}
	fmt.Println("\nlinks:")
	for _, a := range anchors {
		if a.Name == "" {
			continue
		}
		fmt.Printf("- %s: %s\n", a.Name, a.Href)
	}
}
