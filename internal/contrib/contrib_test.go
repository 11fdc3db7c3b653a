package contrib

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-devfolio/internal/fetch"
	"go-devfolio/internal/rules"
)

type fixtureDay struct {
	id, date, level string
	tip             string
}

func calendarPage(total string, days []fixtureDay) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="js-yearly-contributions">`)
	if total != "" {
		fmt.Fprintf(&b, "<h2>\n  %s\n</h2>", total)
	}
	b.WriteString(`<div class="js-calendar-graph"><table class="js-calendar-graph-table"><tbody><tr>`)
	for _, d := range days {
		b.WriteString(`<td class="ContributionCalendar-day"`)
		if d.id != "" {
			fmt.Fprintf(&b, ` id="%s"`, d.id)
		}
		if d.date != "" {
			fmt.Fprintf(&b, ` data-date="%s"`, d.date)
		}
		if d.level != "" {
			fmt.Fprintf(&b, ` data-level="%s"`, d.level)
		}
		b.WriteString(`></td>`)
	}
	b.WriteString(`</tr></tbody></table>`)
	for _, d := range days {
		if d.tip != "" {
			fmt.Fprintf(&b, `<tool-tip for="%s">%s</tool-tip>`, d.id, d.tip)
		}
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func TestParse_TotalAndDays(t *testing.T) {
	page := calendarPage("1,234 contributions in 2024", []fixtureDay{
		{id: "d1", date: "2024-01-01", level: "2", tip: "5 contributions on January 1st."},
		{id: "d2", date: "2024-01-02", level: "0", tip: "No contributions on January 2nd."},
		{id: "d3", date: "2024-12-31", level: "4"},
	})
	res, err := Parse(strings.NewReader(page), 2024, rules.Contributions{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Total != 1234 {
		t.Fatalf("total = %d, want 1234", res.Total)
	}
	if len(res.Days) != 366 {
		t.Fatalf("days length = %d, want 366", len(res.Days))
	}
	if d := res.Days[0]; d == nil || d.Count != 5 || d.Level != 2 || d.Date != "2024-01-01" {
		t.Fatalf("day 1 = %+v", d)
	}
	if d := res.Days[1]; d == nil || d.Count != 0 || d.Level != 0 {
		t.Fatalf("day 2 = %+v", d)
	}
	if d := res.Days[365]; d == nil || d.Count != 0 || d.Level != 4 {
		t.Fatalf("day 366 = %+v", d)
	}
	if res.Days[2] != nil {
		t.Fatalf("missing day should be nil, got %+v", res.Days[2])
	}
}

func TestParse_BadDaysAreSkipped(t *testing.T) {
	page := calendarPage("10 contributions", []fixtureDay{
		{id: "ok", date: "2023-02-01", level: "1", tip: "10 contributions"},
		{date: "2023-02-02", level: "1"},
		{id: "nolevel", date: "2023-02-03"},
		{id: "badlevel", date: "2023-02-04", level: "9"},
		{id: "wrongyear", date: "2022-02-05", level: "1"},
		{id: "baddate", date: "2023-02-30x", level: "1"},
	})
	res, err := Parse(strings.NewReader(page), 2023, rules.Contributions{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := 0
	for _, d := range res.Days {
		if d != nil {
			n++
		}
	}
	if n != 1 || res.Days[31] == nil || res.Days[31].Count != 10 {
		t.Fatalf("expected only the valid day, got %d entries", n)
	}
}

func TestParse_TotalMissing(t *testing.T) {
	days := []fixtureDay{{id: "d1", date: "2024-01-01", level: "1"}}
	for name, total := range map[string]string{"no node": "", "no number": "Contributions this year"} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(calendarPage(total, days)), 2024, rules.Contributions{})
			if !errors.Is(err, ErrTotalNotFound) {
				t.Fatalf("expected ErrTotalNotFound, got %v", err)
			}
		})
	}
}

func TestParse_CustomPreset(t *testing.T) {
	page := `<div class="cal"><span class="sum">42 total</span>
<div class="cell" data-id="x" data-day="2024-03-01" data-intensity="3"></div></div>
<div class="tips"><span data-target="x">7 contributions</span></div>`
	preset := rules.Contributions{
		Day:        ".cal .cell",
		ID:         "@data-id",
		Date:       "@data-day",
		Level:      "@data-intensity",
		Total:      ".cal .sum",
		Tooltip:    ".tips span",
		TooltipKey: "data-target",
	}
	res, err := Parse(strings.NewReader(page), 2024, preset)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Total != 42 {
		t.Fatalf("total = %d", res.Total)
	}
	if d := res.Days[60]; d == nil || d.Count != 7 || d.Level != 3 {
		t.Fatalf("day = %+v", d)
	}
}

func yearServer(t *testing.T, failYear int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/users/octo/contributions" {
			http.NotFound(w, r)
			return
		}
		from := r.URL.Query().Get("from")
		year, _ := strconv.Atoi(strings.SplitN(from, "-", 2)[0])
		if r.URL.Query().Get("to") != fmt.Sprintf("%d-12-31", year) {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		if year == failYear {
			_, _ = w.Write([]byte(calendarPage("", nil)))
			return
		}
		_, _ = w.Write([]byte(calendarPage(fmt.Sprintf("%d contributions", year), []fixtureDay{
			{id: "a", date: fmt.Sprintf("%d-01-01", year), level: "1", tip: "1 contribution"},
		})))
	}))
}

func newService(t *testing.T, srv *httptest.Server, now time.Time) *Service {
	t.Helper()
	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	clock := func() time.Time { return now }
	s, err := New(cl, Options{User: "octo", JoinYear: 2021, BaseURL: srv.URL, Concurrency: 2, Now: clock})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestService_AllYearsAndCache(t *testing.T) {
	var hits int32
	srv := yearServer(t, 0, &hits)
	defer srv.Close()
	s := newService(t, srv, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	got, err := s.Contributions(context.Background())
	if err != nil {
		t.Fatalf("contributions: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("years = %d, want 4 (2021..2024)", len(got))
	}
	if got[2022].Total != 2022 || got[2022].Days[0] == nil {
		t.Fatalf("2022 = %+v", got[2022].Total)
	}
	if _, err := s.Contributions(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 4 {
		t.Fatalf("upstream hits = %d, want 4 (second call served from cache)", n)
	}
}

func TestService_PartialResults(t *testing.T) {
	var hits int32
	srv := yearServer(t, 2023, &hits)
	defer srv.Close()
	s := newService(t, srv, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	got, err := s.Contributions(context.Background())
	if !errors.Is(err, ErrTotalNotFound) {
		t.Fatalf("expected joined ErrTotalNotFound, got %v", err)
	}
	if _, ok := got[2023]; ok {
		t.Fatal("failed year must be omitted")
	}
	if len(got) != 3 {
		t.Fatalf("years = %d, want 3", len(got))
	}
}

func TestService_Mock(t *testing.T) {
	s, err := New(nil, Options{User: "octo", JoinYear: 2023, Mock: true, Now: func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer s.Close()
	got, err := s.Contributions(context.Background())
	if err != nil || len(got) != 2 || len(got[2024].Days) != 366 {
		t.Fatalf("mock contributions: %v %d", err, len(got))
	}
}

func TestService_UnknownUser(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := newService(t, srv, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := s.Year(context.Background(), 2024)
	if !fetch.IsStatus(err, http.StatusNotFound) || !strings.Contains(err.Error(), `unknown github user "octo"`) {
		t.Fatalf("err = %v", err)
	}
}
