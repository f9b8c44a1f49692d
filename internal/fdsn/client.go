// Package fdsn implements the availability and data-select collaborators on
// top of FDSN web services: channel metadata from fdsnws-station and samples
// from the IRIS timeseries service.
package fdsn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seisqc/internal/availability"
	"seisqc/internal/domain"
	"seisqc/internal/stream"
	"seisqc/internal/util"
)

const (
	DefaultStationURL    = "https://service.iris.edu/fdsnws/station/1/query"
	DefaultDataSelectURL = "https://service.iris.edu/irisws/timeseries/1/query"

	queryTimeLayout = "2006-01-02T15:04:05"
)

var _ availability.Service = (*Client)(nil)
var _ stream.DataSelect = (*Client)(nil)

// Selection restricts availability queries. Fields accept FDSN wildcards;
// empty fields match everything. Use "--" for a blank location code.
type Selection struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

// Options configures a Client.
type Options struct {
	StationURL      string
	DataSelectURL   string
	Selection       Selection
	Timeout         time.Duration // per request; 0 means no timeout
	RateLimitPerMin int           // 0 disables pacing
	RateLimitBurst  int           // requests allowed back to back; at least 1
}

// Client queries FDSN web services.
type Client struct {
	stationURL    string
	dataSelectURL string
	selection     Selection
	http          *http.Client
	limiter       *util.RateLimiter
	log           *slog.Logger
}

// New creates a Client. Empty URLs fall back to the IRIS defaults.
func New(opts Options, log *slog.Logger) *Client {
	if opts.StationURL == "" {
		opts.StationURL = DefaultStationURL
	}
	if opts.DataSelectURL == "" {
		opts.DataSelectURL = DefaultDataSelectURL
	}
	sel := &opts.Selection
	for _, f := range []*string{&sel.Network, &sel.Station, &sel.Location, &sel.Channel} {
		if *f == "" {
			*f = "*"
		}
	}
	return &Client{
		stationURL:    opts.StationURL,
		dataSelectURL: opts.DataSelectURL,
		selection:     opts.Selection,
		http:          &http.Client{Timeout: opts.Timeout},
		limiter:       util.NewRateLimiter(opts.RateLimitPerMin, opts.RateLimitBurst),
		log:           log.With("component", "fdsn"),
	}
}

// DataSelectURL returns the timeseries endpoint, used to identify the
// backend in warnings.
func (c *Client) DataSelectURL() string { return c.dataSelectURL }

// GetAvailability lists channel epochs matching the selection that overlap
// [start, end), one row per epoch. An empty station response yields no rows
// and no error; the caller skips that window.
func (c *Client) GetAvailability(ctx context.Context, start, end time.Time) ([]domain.SNCL, error) {
	sel := c.selection
	rows, err := c.queryChannels(ctx, sel.Network, sel.Station, sel.Location, sel.Channel, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		c.log.Debug("station service returned no channels",
			"start", util.DateString(start), "end", util.DateString(end))
	}
	return rows, nil
}

// GetDataSelect retrieves samples for sncl in [start, end). Under
// domain.EpochStrict the station service is consulted first and the call
// fails with domain.ErrMultipleEpochs when more than one epoch overlaps.
func (c *Client) GetDataSelect(ctx context.Context, sncl domain.SNCL, start, end time.Time, policy domain.EpochPolicy) (*domain.SampleStream, error) {
	if policy == domain.EpochStrict {
		epochs, err := c.queryChannels(ctx, sncl.Network, sncl.Station, sncl.Location, sncl.Channel, start, end)
		if err != nil {
			return nil, err
		}
		if len(epochs) > 1 {
			return nil, fmt.Errorf("%s: %d epochs: %w", sncl.ID(), len(epochs), domain.ErrMultipleEpochs)
		}
	}

	q := snclQuery(sncl.Network, sncl.Station, sncl.Location, sncl.Channel, start, end)
	q.Set("format", "geocsv.tspair")

	body, err := c.get(ctx, c.dataSelectURL, q)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%s %s: %w", sncl.ID(), util.DateString(start), domain.ErrNoData)
	}
	defer body.Close()

	traces, err := parseGeoCSV(body)
	if err != nil {
		return nil, fmt.Errorf("parsing timeseries for %s: %w", sncl.ID(), err)
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("%s %s: %w", sncl.ID(), util.DateString(start), domain.ErrNoData)
	}
	return &domain.SampleStream{SNCL: sncl, Start: start, End: end, Traces: traces}, nil
}

func (c *Client) queryChannels(ctx context.Context, net, sta, loc, cha string, start, end time.Time) ([]domain.SNCL, error) {
	q := snclQuery(net, sta, loc, cha, start, end)
	q.Set("level", "channel")
	q.Set("format", "text")

	body, err := c.get(ctx, c.stationURL, q)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	defer body.Close()

	rows, err := parseChannelText(body)
	if err != nil {
		return nil, fmt.Errorf("parsing station response: %w", err)
	}
	return rows, nil
}

// get issues a GET request. It returns a nil body when the service reports
// no content (204 or 404).
func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "seisqc")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("request", "url", u, "status", resp.StatusCode, "elapsed", time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNoContent, http.StatusNotFound:
		resp.Body.Close()
		return nil, nil
	default:
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func snclQuery(net, sta, loc, cha string, start, end time.Time) url.Values {
	q := url.Values{}
	set := func(key, v string) {
		if v != "" {
			q.Set(key, v)
		}
	}
	set("net", net)
	set("sta", sta)
	set("cha", cha)
	if loc == "" {
		loc = "--"
	}
	q.Set("loc", loc)
	q.Set("starttime", start.UTC().Format(queryTimeLayout))
	q.Set("endtime", end.UTC().Format(queryTimeLayout))
	return q
}

// parseChannelText reads the pipe-separated fdsnws-station channel format:
//
//	#Network|Station|Location|Channel|Latitude|Longitude|Elevation|Depth|Azimuth|Dip|SensorDescription|Scale|ScaleFreq|ScaleUnits|SampleRate|StartTime|EndTime
func parseChannelText(r io.Reader) ([]domain.SNCL, error) {
	var out []domain.SNCL
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		f := strings.Split(text, "|")
		if len(f) < 17 {
			return nil, fmt.Errorf("line %d: %d fields, want 17", line, len(f))
		}
		for i := range f {
			f[i] = strings.TrimSpace(f[i])
		}

		var e domain.Epoch
		var err error
		if f[14] != "" {
			if e.SampleRate, err = strconv.ParseFloat(f[14], 64); err != nil {
				return nil, fmt.Errorf("line %d: sample rate: %w", line, err)
			}
		}
		if e.Start, err = util.ParseTime(f[15]); err != nil {
			return nil, fmt.Errorf("line %d: start: %w", line, err)
		}
		if f[16] != "" {
			if e.End, err = util.ParseTime(f[16]); err != nil {
				return nil, fmt.Errorf("line %d: end: %w", line, err)
			}
		}

		out = append(out, domain.SNCL{
			Network:  f[0],
			Station:  f[1],
			Location: f[2],
			Channel:  f[3],
			Epoch:    &e,
		})
	}
	return out, sc.Err()
}

// parseGeoCSV reads GeoCSV tspair output. Each segment starts with its own
// "# dataset" header block followed by "time, value" rows.
func parseGeoCSV(r io.Reader) ([]domain.Trace, error) {
	var (
		out []domain.Trace
		cur *domain.Trace
	)
	flush := func() {
		if cur != nil && len(cur.Samples) > 0 {
			out = append(out, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "#"):
			key, value, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(text, "#")), ":")
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			switch key {
			case "dataset":
				flush()
			case "sample_rate_hz":
				rate, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: sample rate: %w", line, err)
				}
				segment(&cur).SampleRate = rate
			case "start_time":
				t, err := util.ParseTime(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: start time: %w", line, err)
				}
				segment(&cur).Start = t
			}
		case strings.HasPrefix(strings.ToLower(text), "time"):
			continue
		default:
			ts, value, ok := strings.Cut(text, ",")
			if !ok {
				return nil, fmt.Errorf("line %d: want time,value", line)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: sample: %w", line, err)
			}
			seg := segment(&cur)
			if seg.Start.IsZero() {
				if seg.Start, err = util.ParseTime(strings.TrimSpace(ts)); err != nil {
					return nil, fmt.Errorf("line %d: time: %w", line, err)
				}
			}
			seg.Samples = append(seg.Samples, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

func segment(cur **domain.Trace) *domain.Trace {
	if *cur == nil {
		*cur = &domain.Trace{}
	}
	return *cur
}
