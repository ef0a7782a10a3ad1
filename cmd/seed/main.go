package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"

	"bookcatalog/internal/book"
	"bookcatalog/internal/config"
	"bookcatalog/internal/store"
)

func main() {
	count := flag.Int("count", 100, "Number of books to insert")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("cannot open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer s.Close()

	svc := book.NewService(s.Repo)
	slog.Info("generating books", "count", *count, "driver", s.Driver)

	inserted, err := seed(ctx, svc, rand.New(rand.NewPCG(1, 2)), *count)
	if err != nil {
		slog.Error("failed to insert books", "inserted", inserted, "error", err)
		os.Exit(1)
	}

	page, err := svc.List(ctx, book.BuildQuery("", "", ""))
	if err != nil {
		slog.Error("cannot count books", "error", err)
		os.Exit(1)
	}
	slog.Info("seed complete", "inserted", inserted, "total", page.Total)
}

type creator interface {
	Create(ctx context.Context, d book.Draft) (book.Book, error)
}

// seed creates count generated books and returns how many were stored.
func seed(ctx context.Context, svc creator, rng *rand.Rand, count int) (int, error) {
	for i := 0; i < count; i++ {
		if _, err := svc.Create(ctx, randomDraft(rng, i)); err != nil {
			return i, err
		}
		if (i+1)%1000 == 0 {
			slog.Info("progress", "inserted", i+1, "count", count)
		}
	}
	return count, nil
}

func randomDraft(rng *rand.Rand, i int) book.Draft {
	d := book.Draft{
		Title:  randomWord(rng) + " of " + randomWord(rng),
		Author: authors[rng.IntN(len(authors))],
		Price:  float64(500+rng.IntN(4500)) / 100,
	}
	// Roughly one book in five has no rating yet.
	if i%5 != 0 {
		r := float64(10+rng.IntN(41)) / 10
		d.Rating = &r
	}
	return d
}

var authors = []string{
	"Ursula K. Le Guin", "Frank Herbert", "Octavia E. Butler", "Iain M. Banks",
	"Ted Chiang", "N. K. Jemisin", "Stanisław Lem", "Jorge Luis Borges",
}

func randomWord(rng *rand.Rand) string {
	words := []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
	return words[rng.IntN(len(words))]
}
