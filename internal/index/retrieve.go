// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

// QueryOptions selects records from the index.
type QueryOptions struct {
	// Query is a full-text search over title and abstract.
	Query string

	// Author, Country and RunID filter by exact value; Author and Country
	// ignore case.
	Author  string
	Country string
	RunID   string

	// Code keeps records whose classification codes contain it.
	Code string

	// MaxResults limits the result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Author == "" && q.Country == "" && q.RunID == "" && q.Code == ""
}

// Result is a stored record with the author and run it was harvested for.
type Result struct {
	types.PatentRecord `yaml:",inline"`

	Author string `json:"author" yaml:"author"`
	RunID  string `json:"run_id" yaml:"run_id"`
}

// Retrieve returns matching records. Full-text queries are ranked by
// relevance; filter-only queries are ordered by author and link.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != "" && s.fts
	)

	const columns = `p.link, p.author, p.run_id, p.title, p.assignees, p.inventors,
		p.priority_date, p.publication_date, p.codes, p.patent_code, p.country,
		p.abstract, p.document_path`

	if useFTS {
		qb.WriteString(`SELECT ` + columns + `
			FROM patents_fts
			JOIN patents p ON p.rowid = patents_fts.rowid
			WHERE patents_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + columns + ` FROM patents p WHERE 1=1`)
		for _, term := range strings.Fields(opts.Query) {
			qb.WriteString(` AND (p.title LIKE ? OR p.abstract LIKE ?)`)
			like := "%" + term + "%"
			args = append(args, like, like)
		}
	}

	if opts.Author != "" {
		qb.WriteString(` AND p.author = ? COLLATE NOCASE`)
		args = append(args, opts.Author)
	}
	if opts.Country != "" {
		qb.WriteString(` AND p.country = ? COLLATE NOCASE`)
		args = append(args, opts.Country)
	}
	if opts.RunID != "" {
		qb.WriteString(` AND p.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.Code != "" {
		qb.WriteString(` AND instr(p.codes, ?) > 0`)
		args = append(args, opts.Code)
	}

	if useFTS {
		qb.WriteString(` ORDER BY patents_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY p.author, p.link`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r                           Result
			title, assignees, inventors sql.NullString
			priority, publication       sql.NullString
			codes, code, country        sql.NullString
			abstract, docPath           sql.NullString
		)
		if err := rows.Scan(
			&r.Link, &r.Author, &r.RunID, &title, &assignees, &inventors,
			&priority, &publication, &codes, &code, &country, &abstract, &docPath,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Title = title.String
		r.PriorityDate = priority.String
		r.PublicationDate = publication.String
		r.ClassificationCodes = codes.String
		r.PatentCode = code.String
		r.Country = country.String
		r.Abstract = abstract.String
		r.PathToPDFFile = docPath.String
		if assignees.Valid {
			json.Unmarshal([]byte(assignees.String), &r.CurrentAssignee)
		}
		if inventors.Valid {
			json.Unmarshal([]byte(inventors.String), &r.Inventors)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
