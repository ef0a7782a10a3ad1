package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"bookcatalog/internal/book"
)

func printBooks(w io.Writer, items []book.Book) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPRICE\tRATING")
	for _, b := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", b.ID, b.Title, b.Author, b.Price, rating(b.Rating))
	}
	return tw.Flush()
}

func printBook(w io.Writer, b book.Book) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", b.ID)
	fmt.Fprintf(tw, "title:\t%s\n", b.Title)
	fmt.Fprintf(tw, "author:\t%s\n", b.Author)
	fmt.Fprintf(tw, "price:\t%.2f\n", b.Price)
	fmt.Fprintf(tw, "rating:\t%s\n", rating(b.Rating))
	return tw.Flush()
}

func printPageInfo(w io.Writer, info *book.PageInfo) error {
	if info == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "page %d of %d (%d books, %d per page)\n", info.Page, info.TotalPages, info.Total, info.Limit)
	return err
}

func rating(r *float64) string {
	if r == nil {
		return "-"
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}
