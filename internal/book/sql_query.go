package book

import (
	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const booksTable = "books"

var bookColumns = []any{"id", "title", "author", "price", "rating", "created_at", "updated_at"}

// sortable columns; anything else falls back to id.
var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"author":     "author",
	"price":      "price",
	"rating":     "rating",
	"created_at": "created_at",
}

func orderBy(s SortSpec) []exp.OrderedExpression {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = "id"
	}
	c := goqu.C(col)
	if s.Desc {
		if col == "id" {
			return []exp.OrderedExpression{c.Desc()}
		}
		return []exp.OrderedExpression{c.Desc().NullsLast(), goqu.C("id").Desc()}
	}
	if col == "id" {
		return []exp.OrderedExpression{c.Asc()}
	}
	return []exp.OrderedExpression{c.Asc().NullsFirst(), goqu.C("id").Asc()}
}

func paginate(ds *goqu.SelectDataset, skip, limit int) *goqu.SelectDataset {
	if skip > 0 {
		ds = ds.Offset(uint(skip))
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return ds
}

func patchRecord(p Patch) goqu.Record {
	rec := goqu.Record{}
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Author != nil {
		rec["author"] = *p.Author
	}
	if p.Price != nil {
		rec["price"] = *p.Price
	}
	if p.Rating != nil {
		rec["rating"] = *p.Rating
	}
	return rec
}
