package okx

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"triarb/internal/market"
)

// RESTClient - клиент публичного REST API биржи.
type RESTClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewRESTClient создаёт REST клиент.
func NewRESTClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *RESTClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultHTTPClientConfig())
	}
	return &RESTClient{baseURL: baseURL, http: httpClient, logger: logger}
}

// FetchInstruments загружает каталог SPOT инструментов.
//
// Возвращает ошибку при ненулевом коде ответа или пустом каталоге:
// пустой каталог означает деградацию API, на нём нельзя строить
// треугольники. Инструменты в состоянии, отличном от live, отбрасываются.
func (c *RESTClient) FetchInstruments(ctx context.Context) ([]market.Instrument, error) {
	url := c.baseURL + "/api/v5/public/instruments?instType=SPOT"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build instruments request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch instruments: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read instruments response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch instruments: status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			InstID   string `json:"instId"`
			BaseCcy  string `json:"baseCcy"`
			QuoteCcy string `json:"quoteCcy"`
			State    string `json:"state"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse instruments response: %w", err)
	}

	if parsed.Code != "" && parsed.Code != "0" {
		return nil, &APIError{Op: "instruments", Code: parsed.Code, Msg: parsed.Msg}
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("instrument catalog is empty")
	}

	instruments := make([]market.Instrument, 0, len(parsed.Data))
	skipped := 0
	for _, d := range parsed.Data {
		if d.State != "" && d.State != "live" {
			skipped++
			continue
		}
		inst, err := market.ParseInstrument(d.InstID)
		if err != nil {
			c.logger.Warn("skipping malformed instrument id", zap.String("instId", d.InstID))
			skipped++
			continue
		}
		if d.BaseCcy != "" {
			inst.Base = d.BaseCcy
		}
		if d.QuoteCcy != "" {
			inst.Quote = d.QuoteCcy
		}
		instruments = append(instruments, inst)
	}

	if len(instruments) == 0 {
		return nil, fmt.Errorf("instrument catalog has no live instruments")
	}

	c.logger.Info("instrument catalog loaded",
		zap.Int("instruments", len(instruments)),
		zap.Int("skipped", skipped))

	return instruments, nil
}
