package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"pyqportal/internal/models"
)

// Filters narrows GET /pyqs. Zero values are omitted.
type Filters struct {
	Year       string
	Semester   string
	Subject    string
	ExamType   string
	CourseCode string
	SortBy     string
	Limit      int
	Offset     int
}

func (f Filters) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("year", f.Year)
	set("semester", f.Semester)
	set("subject", f.Subject)
	set("examType", f.ExamType)
	set("courseCode", f.CourseCode)
	set("sortBy", f.SortBy)
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	return v
}

func (c *Client) ListPYQs(ctx context.Context, f Filters) (*models.CatalogPage, error) {
	var page models.CatalogPage
	if err := c.doJSON(ctx, uploadService, http.MethodGet, "/pyqs", f.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SearchPYQs(ctx context.Context, query string) (*models.CatalogPage, error) {
	var page models.CatalogPage
	if err := c.doJSON(ctx, uploadService, http.MethodGet, "/pyqs/search", url.Values{"q": {query}}, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPYQ(ctx context.Context, id int64) (*models.StoredFile, error) {
	var f models.StoredFile
	if err := c.doJSON(ctx, uploadService, http.MethodGet, fmt.Sprintf("/pyqs/%d", id), nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadPYQ copies the paper's bytes into w.
func (c *Client) DownloadPYQ(ctx context.Context, id int64, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, uploadService, http.MethodGet, fmt.Sprintf("/pyqs/%d/download", id), nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.do(uploadService, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download paper %d: %w", id, err)
	}
	return n, nil
}

func (c *Client) GetFilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	var opts models.FilterOptions
	if err := c.doJSON(ctx, uploadService, http.MethodGet, "/filter-options", nil, nil, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Reindex asks the upload service to rebuild its catalog from stored files. It needs an admin token.
func (c *Client) Reindex(ctx context.Context) error {
	return c.doJSON(ctx, uploadService, http.MethodPost, "/admin/reindex", nil, nil, nil)
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resp.Request.URL.Path, err)
	}
	return nil
}
