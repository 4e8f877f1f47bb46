package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tanishq-3343/HRV-Stress-Detection/internal/cache"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/metrics"
	"github.com/tanishq-3343/HRV-Stress-Detection/internal/utils"
)

// ErrRecordNotFound signals that the archive does not know the record.
var ErrRecordNotFound = errors.New("record not found")

// Segment is one contiguous stretch of a single ECG channel in
// millivolts, ready for the analysis pipeline.
type Segment struct {
	Record       string
	Channel      int
	SamplingRate float64
	OffsetSec    float64
	Samples      []float64
}

// ArchiveClient fetches WFDB records from a PhysioNet-style HTTP archive:
// <base>/<database>/<record>.hea and .dat. Segment reads use frame-aligned
// HTTP range requests so a 30-minute record never has to be downloaded to
// analyze a 5-minute window. Requests are rate limited to stay polite
// against the public archive, and small segments are kept in the cache
// provider.
type ArchiveClient struct {
	baseURL       string
	database      string
	httpClient    *http.Client
	limiter       *rate.Limiter
	cache         cache.Provider
	segmentTTL    time.Duration
	cacheMaxBytes int

	mu      sync.Mutex
	headers map[string]WFDBHeader
}

// NewArchiveClient constructs an archive client. perSecond <= 0 disables
// rate limiting; a nil cache provider disables segment caching.
func NewArchiveClient(baseURL, database string, timeout time.Duration, perSecond float64, burst int, cacheProvider cache.Provider, segmentTTL time.Duration, cacheMaxBytes int) *ArchiveClient {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}

	return &ArchiveClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		database:      strings.Trim(database, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(limit, burst),
		cache:         cacheProvider,
		segmentTTL:    segmentTTL,
		cacheMaxBytes: cacheMaxBytes,
		headers:       make(map[string]WFDBHeader),
	}
}

// Header fetches and parses the record's .hea file. Parsed headers are
// memoized for the client's lifetime; they are a few hundred bytes and
// immutable on the archive side.
func (c *ArchiveClient) Header(ctx context.Context, record string) (WFDBHeader, error) {
	if c.baseURL == "" {
		return WFDBHeader{}, utils.NewAppError("archive.header", "archive base URL not configured", nil)
	}

	c.mu.Lock()
	hdr, ok := c.headers[record]
	c.mu.Unlock()
	if ok {
		return hdr, nil
	}

	body, err := c.get(ctx, c.recordURL(record)+".hea", "")
	if err != nil {
		return WFDBHeader{}, err
	}

	hdr, err = ParseWFDBHeader(body)
	if err != nil {
		return WFDBHeader{}, utils.NewAppError("archive.header", fmt.Sprintf("record %s", record), err)
	}

	c.mu.Lock()
	c.headers[record] = hdr
	c.mu.Unlock()
	return hdr, nil
}

// FetchSegment retrieves windowSec seconds of one channel starting
// offsetSec into the record. The window is clipped to the record end; an
// offset past the end is an error.
func (c *ArchiveClient) FetchSegment(ctx context.Context, record string, channel int, offsetSec, windowSec float64) (Segment, error) {
	seg, err := c.fetchSegment(ctx, record, channel, offsetSec, windowSec)
	if err != nil {
		metrics.IncArchiveFetch(metrics.OutcomeError)
		return Segment{}, err
	}
	metrics.IncArchiveFetch(metrics.OutcomeSuccess)
	return seg, nil
}

func (c *ArchiveClient) fetchSegment(ctx context.Context, record string, channel int, offsetSec, windowSec float64) (Segment, error) {
	if offsetSec < 0 || windowSec <= 0 {
		return Segment{}, fmt.Errorf("archive: offset %g / window %g out of range", offsetSec, windowSec)
	}

	hdr, err := c.Header(ctx, record)
	if err != nil {
		return Segment{}, err
	}
	if channel < 0 || channel >= len(hdr.Signals) {
		return Segment{}, fmt.Errorf("archive: record %s has no channel %d", record, channel)
	}

	framesPerChunk, bytesPerChunk, err := hdr.FrameGeometry()
	if err != nil {
		return Segment{}, err
	}

	startFrame := int(math.Floor(offsetSec * hdr.SamplingRate))
	wantFrames := int(math.Ceil(windowSec * hdr.SamplingRate))
	if hdr.Samples > 0 {
		if startFrame >= hdr.Samples {
			return Segment{}, fmt.Errorf("archive: offset %gs is past the end of record %s", offsetSec, record)
		}
		if startFrame+wantFrames > hdr.Samples {
			wantFrames = hdr.Samples - startFrame
		}
	}

	alignedStart := startFrame / framesPerChunk * framesPerChunk
	endFrame := startFrame + wantFrames
	alignedEnd := (endFrame + framesPerChunk - 1) / framesPerChunk * framesPerChunk

	byteStart := alignedStart / framesPerChunk * bytesPerChunk
	byteLen := (alignedEnd - alignedStart) / framesPerChunk * bytesPerChunk

	data, err := c.fetchBytes(ctx, record, hdr.Signals[channel].FileName, byteStart, byteLen)
	if err != nil {
		return Segment{}, err
	}

	channels, err := DecodeFrames(hdr.Signals[channel].Format, len(hdr.Signals), data)
	if err != nil {
		return Segment{}, utils.NewAppError("archive.segment", fmt.Sprintf("decode record %s", record), err)
	}

	adc := channels[channel]
	skip := startFrame - alignedStart
	if skip > len(adc) {
		skip = len(adc)
	}
	adc = adc[skip:]
	if len(adc) > wantFrames {
		adc = adc[:wantFrames]
	}

	samples, err := hdr.Physical(channel, adc)
	if err != nil {
		return Segment{}, err
	}

	return Segment{
		Record:       record,
		Channel:      channel,
		SamplingRate: hdr.SamplingRate,
		OffsetSec:    float64(startFrame) / hdr.SamplingRate,
		Samples:      samples,
	}, nil
}

// fetchBytes reads [byteStart, byteStart+byteLen) of the signal file,
// consulting the segment cache first.
func (c *ArchiveClient) fetchBytes(ctx context.Context, record, fileName string, byteStart, byteLen int) ([]byte, error) {
	key := fmt.Sprintf("wfdb:%s:%s:%d:%d", c.database, fileName, byteStart, byteLen)
	cacheable := byteLen <= c.cacheMaxBytes

	if cacheable {
		if data, err := c.cache.Get(ctx, key); err == nil {
			return data, nil
		}
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", byteStart, byteStart+byteLen-1)
	data, err := c.get(ctx, c.fileURL(record, fileName), rangeHeader)
	if err != nil {
		return nil, err
	}
	// Servers without range support return the whole file.
	if len(data) > byteLen {
		if byteStart >= len(data) {
			return nil, fmt.Errorf("archive: range %s beyond %d-byte file", rangeHeader, len(data))
		}
		end := byteStart + byteLen
		if end > len(data) {
			end = len(data)
		}
		data = data[byteStart:end]
	}

	if cacheable {
		_ = c.cache.Set(ctx, key, data, c.segmentTTL)
	}
	return data, nil
}

func (c *ArchiveClient) get(ctx context.Context, endpoint, rangeHeader string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("archive.get", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, endpoint)
	default:
		return nil, utils.NewAppError("archive.get", endpoint, fmt.Errorf("archive returned %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewAppError("archive.get", endpoint, err)
	}
	return body, nil
}

func (c *ArchiveClient) recordURL(record string) string {
	return c.resolve(path.Join(c.database, record))
}

func (c *ArchiveClient) fileURL(record, fileName string) string {
	// Signal files live next to the header.
	return c.resolve(path.Join(c.database, fileName))
}

func (c *ArchiveClient) resolve(p string) string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + "/" + p
	}
	u.Path = path.Join(u.Path, p)
	return u.String()
}
