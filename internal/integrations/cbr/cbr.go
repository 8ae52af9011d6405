package cbr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/expiwt/AlphaHack/internal/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultLookbackDays = 30

// KeyRate is the latest published key rate and the lending rate derived from it
type KeyRate struct {
	EffectiveDate time.Time
	CentralRate   float64
	LendingRate   float64
}

type observation struct {
	date time.Time
	rate decimal.Decimal
}

// CBRClient fetches the Bank of Russia key rate over SOAP
type CBRClient struct {
	url      string
	margin   decimal.Decimal
	lookback int
	client   *http.Client
	log      *logrus.Logger
	now      func() time.Time
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(cfg *config.Config, log *logrus.Logger) *CBRClient {
	lookback := cfg.KeyRateLookback
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	return &CBRClient{
		url:      cfg.CBRURL,
		margin:   decimal.NewFromFloat(cfg.KeyRateMargin),
		lookback: lookback,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
		now: time.Now,
	}
}

// buildSOAPRequest asks for every key rate published inside the lookback window
func (c *CBRClient) buildSOAPRequest() string {
	now := c.now()
	fromDate := now.AddDate(0, 0, -c.lookback).Format("2006-01-02")
	toDate := now.Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<KeyRate xmlns="http://web.cbr.ru/">
					<fromDate>%s</fromDate>
					<ToDate>%s</ToDate>
				</KeyRate>
			</soap12:Body>
		</soap12:Envelope>`, fromDate, toDate)
}

func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %s", string(body))
	return body, nil
}

// parseObservations reads every KR row of the diffgram
func parseObservations(rawBody []byte) ([]observation, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return nil, fmt.Errorf("no key rate data found in XML")
	}

	out := make([]observation, 0, len(krElements))
	for _, kr := range krElements {
		dt, rt := kr.FindElement("./DT"), kr.FindElement("./Rate")
		if dt == nil || rt == nil {
			return nil, fmt.Errorf("key rate row without DT or Rate")
		}
		date, err := time.Parse(time.RFC3339, strings.TrimSpace(dt.Text()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse key rate date: %w", err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rt.Text()))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate: %w", err)
		}
		out = append(out, observation{date: date, rate: rate})
	}
	return out, nil
}

// latest picks the most recent observation; rows are not assumed to be sorted
func latest(obs []observation) observation {
	best := obs[0]
	for _, o := range obs[1:] {
		if o.date.After(best.date) {
			best = o
		}
	}
	return best
}

// GetKeyRate returns the newest key rate in the window and the lending rate on top of it
func (c *CBRClient) GetKeyRate(ctx context.Context) (KeyRate, error) {
	body, err := c.sendRequest(ctx, c.buildSOAPRequest())
	if err != nil {
		return KeyRate{}, err
	}

	obs, err := parseObservations(body)
	if err != nil {
		return KeyRate{}, err
	}

	cur := latest(obs)
	kr := KeyRate{
		EffectiveDate: cur.date,
		CentralRate:   cur.rate.InexactFloat64(),
		LendingRate:   cur.rate.Add(c.margin).InexactFloat64(),
	}
	c.log.WithFields(logrus.Fields{
		"effective_date": cur.date.Format("2006-01-02"),
		"central_rate":   kr.CentralRate,
		"margin":         c.margin.String(),
	}).Infof("Retrieved key rate: %.2f%%", kr.LendingRate)
	return kr, nil
}
