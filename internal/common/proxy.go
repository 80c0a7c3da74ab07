package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	OK                     int = 200
	BAD_REQUEST            int = 400
	UNAUTHORIZED           int = 401
	FORBIDDEN              int = 403
	DATA_NOT_FOUND         int = 404
	METHOD_NOT_ALLOWED     int = 405
	UNSUPPORTED_MEDIA_TYPE int = 415
	RATE_LIMIT_EXCEEDED    int = 429
	INTERNAL_SERVER_ERROR  int = 500
	BAD_GATEWAY            int = 502
	SERVICE_UNAVAILABLE    int = 503
	GATEWAY_TIMEOUT        int = 504
)

var messages = map[int]string{
	OK:                     "OK",
	BAD_REQUEST:            "Bad request",
	UNAUTHORIZED:           "Unauthorized",
	FORBIDDEN:              "Forbidden",
	DATA_NOT_FOUND:         "Data not found",
	METHOD_NOT_ALLOWED:     "Method not allowed",
	UNSUPPORTED_MEDIA_TYPE: "Unsupported media type",
	RATE_LIMIT_EXCEEDED:    "Rate limit exceeded",
	INTERNAL_SERVER_ERROR:  "Internal server error",
	BAD_GATEWAY:            "Bad gateway",
	SERVICE_UNAVAILABLE:    "Service unavailable",
	GATEWAY_TIMEOUT:        "Gateway timeout",
}

// Proxy outcomes the caller may want to tell apart. ErrNotFound is the
// only one that says anything definitive about the requested resource;
// the others describe the state of the upstream or of the rate limiter
var (
	ErrNotFound    = errors.New("data not found")
	ErrThrottled   = errors.New("request rejected by rate limiter")
	ErrUnavailable = errors.New("upstream unavailable")
	ErrRejected    = errors.New("request rejected by upstream")
)

type Proxy struct {
	header      map[string]string
	client      *http.Client
	rateLimiter *RateLimiter
}

func NewProxy(header map[string]string, restrictions []Restriction, penalty time.Duration, timeout time.Duration) Proxy {
	return Proxy{header, &http.Client{Timeout: timeout}, NewRateLimiter(restrictions, penalty)}
}

// Make a request to the provided url, indicating if it is vital.
// Vital requests wait for the rate limiter; non vital ones are dropped
// when the rate limiter does not allow them
func (proxy *Proxy) Request(ctx context.Context, url string, vital bool) ([]byte, error) {

	// Ask for permission to execute the request
	// and wait if necessary
	if vital {
		if err := proxy.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrThrottled, err)
		}
	} else if !proxy.rateLimiter.Allow() {
		log.Debug().Str("url", url).Msg("Rate limiter is not allowing the request")
		return nil, ErrThrottled
	}

	// Create the request and add the header
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request for url %s: %w", url, err)
	}
	for key, value := range proxy.header {
		request.Header.Set(key, value)
	}

	// Perform the request
	res, err := proxy.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()

	// Check if the status of the request is understood
	message, ok := messages[res.StatusCode]
	if !ok {
		return nil, fmt.Errorf("%w: status code %d is not understood", ErrRejected, res.StatusCode)
	}
	log.Debug().Msg(fmt.Sprintf("%d %s", res.StatusCode, message))

	switch res.StatusCode {
	case OK:
		stream, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("could not extract the response for url %s: %w", url, err)
		}
		return stream, nil
	case DATA_NOT_FOUND:
		return nil, ErrNotFound
	case RATE_LIMIT_EXCEEDED:
		proxy.rateLimiter.ReceivedRateLimit()
		return nil, fmt.Errorf("%w: %s", ErrThrottled, message)
	case INTERNAL_SERVER_ERROR, BAD_GATEWAY, SERVICE_UNAVAILABLE, GATEWAY_TIMEOUT:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return nil, fmt.Errorf("%w: %s", ErrRejected, message)
	}
}
