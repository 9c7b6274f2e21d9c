package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxKlinesPerRequest is the page size limit of the klines endpoint.
	maxKlinesPerRequest = 1500
)

var _ ports.HistorySource = (*Client)(nil)

// Client implements ports.HistorySource on top of the Binance futures
// klines endpoint.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	pageSize      int
	pageDelay     time.Duration
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // overrides the production/testnet URL when set
	Logger     ports.Logger
	PageSize   int           // klines per request, capped at 1500
	PageDelay  time.Duration // pause between page requests
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Debug(context.Background(), "APIKey or SecretKey is empty. Only public endpoints are available.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxKlinesPerRequest {
		pageSize = maxKlinesPerRequest
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		pageSize:      pageSize,
		pageDelay:     cfg.PageDelay,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API-key problems
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		case -1000, -1001, -1006, -1007: // Unknown, disconnected, unexpected response, timeout
			mappedErr = ports.ErrExchangeUnavailable
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// FetchBars pages through the klines of symbol between start and end
// (inclusive) and returns them as bars keyed by their open time.
func (c *Client) FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	op := "FetchBars"
	if end.Before(start) {
		return nil, fmt.Errorf("%s: end %s before start %s: %w", op, end, start, ports.ErrInvalidRequest)
	}
	interval := tf.Interval()
	endMs := end.UnixMilli()
	from := start.UnixMilli()

	var bars []domain.Bar
	for page := 1; ; page++ {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from).
			EndTime(endMs).
			Limit(c.pageSize).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			bar, err := translateBinanceKline(bk)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
			}
			if len(bars) > 0 && bar.Time <= bars[len(bars)-1].Time {
				continue
			}
			bars = append(bars, bar)
		}
		c.logger.Debug(ctx, "Fetched kline page", map[string]interface{}{
			"symbol": symbol, "interval": interval, "page": page, "count": len(klines),
		})

		from = klines[len(klines)-1].CloseTime + 1
		if from > endMs || len(klines) < c.pageSize {
			break
		}
		if c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, c.handleError(ctx, ctx.Err(), op)
			case <-time.After(c.pageDelay):
			}
		}
	}

	return bars, nil
}

func translateBinanceKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	bar := domain.Bar{Time: bk.OpenTime}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open price", bk.Open, &bar.Open},
		{"high price", bk.High, &bar.High},
		{"low price", bk.Low, &bar.Low},
		{"close price", bk.Close, &bar.Close},
		{"volume", bk.Volume, &bar.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing %s '%s': %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return bar, nil
}
