package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"alphabot/internal/domain/models"
	"alphabot/pkg/fixedpoint"
	xhttp "alphabot/pkg/http"
	"alphabot/pkg/logger"
)

// ErrNoState means the query succeeded but the contract holds no bot state
// yet. Callers must not confuse this with a transport failure.
var ErrNoState = errors.New("ledger: no bot state")

const defaultTimeout = 30 * time.Second

// Config locates the bot-state application on the ledger node.
type Config struct {
	Endpoint      string
	ApplicationID string
	ChainID       string
	Timeout       time.Duration
}

// OperationResult is the uniform outcome of a ledger mutation. Mutations
// never return a Go error; failures are carried in Error.
type OperationResult struct {
	Success         bool   `json:"success"`
	CertificateHash string `json:"certificateHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Client submits and queries trading signals on the ledger's GraphQL
// endpoint. Prices cross the wire in micro-USD and confidences in basis
// points; the client owns both directions of that conversion.
type Client struct {
	mu     sync.RWMutex
	cfg    Config
	client *xhttp.Client
	logger *logger.Logger
}

func NewClient(cfg Config, l *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines govern; the underlying client stays unbounded.
		client: xhttp.NewClient(xhttp.WithTimeout(0)),
		logger: l,
	}
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// execute posts one GraphQL document. A present errors array is a failure
// regardless of HTTP status.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	c.mu.RLock()
	endpoint := c.cfg.Endpoint
	timeout := c.cfg.Timeout
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp gqlResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    endpoint,
		Body: map[string]interface{}{
			"query":     query,
			"variables": variables,
		},
	}, &resp)
	if err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("graphql errors: %v", msgs)
	}

	if dest != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, dest); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

// mutate runs one mutation and maps its outcome into an OperationResult,
// taking the mutation field's string value as the certificate hash when the
// node returns one.
func (c *Client) mutate(ctx context.Context, field, query string, variables map[string]interface{}) *OperationResult {
	var data map[string]json.RawMessage
	if err := c.execute(ctx, query, variables, &data); err != nil {
		c.logger.Error("ledger mutation failed",
			logger.String("mutation", field),
			logger.Error(err))
		return &OperationResult{Success: false, Error: err.Error()}
	}

	result := &OperationResult{Success: true}
	if raw, ok := data[field]; ok {
		var hash string
		if err := json.Unmarshal(raw, &hash); err == nil {
			result.CertificateHash = hash
		}
	}
	return result
}

const submitPredictionMutation = `
mutation SubmitPrediction(
  $timestamp: String!
  $action: Action!
  $predictedPriceMicro: String!
  $confidenceBps: Int!
  $reasoning: String!
) {
  submitPrediction(
    timestamp: $timestamp
    action: $action
    predictedPriceMicro: $predictedPriceMicro
    confidenceBps: $confidenceBps
    reasoning: $reasoning
  )
}`

// SubmitPrediction records a new signal on the contract.
func (c *Client) SubmitPrediction(ctx context.Context, signal *models.Signal) *OperationResult {
	return c.mutate(ctx, "submitPrediction", submitPredictionMutation, map[string]interface{}{
		"timestamp":           strconv.FormatInt(signal.Timestamp, 10),
		"action":              string(signal.Action),
		"predictedPriceMicro": fixedpoint.ToMicroUSD(signal.PredictedPrice),
		"confidenceBps":       fixedpoint.ToBasisPoints(signal.Confidence),
		"reasoning":           signal.Reasoning,
	})
}

const resolveSignalMutation = `
mutation ResolveSignal(
  $timestamp: String!
  $actualPriceMicro: String!
) {
  resolveSignal(
    timestamp: $timestamp
    actualPriceMicro: $actualPriceMicro
  )
}`

// ResolveSignal settles a previously submitted signal with the realized
// price.
func (c *Client) ResolveSignal(ctx context.Context, timestamp int64, actualPrice float64) *OperationResult {
	return c.mutate(ctx, "resolveSignal", resolveSignalMutation, map[string]interface{}{
		"timestamp":        strconv.FormatInt(timestamp, 10),
		"actualPriceMicro": fixedpoint.ToMicroUSD(actualPrice),
	})
}

const botStateQuery = `
query GetBotState {
  botId
  latestSignal {
    timestamp
    action
    predictedPriceMicro
    confidenceBps
    reasoning
    actualPriceMicro
  }
  accuracy24H {
    rmseMicro
    directionalAccuracyBps
    totalPredictions
    correctPredictions
    lastUpdated
  }
  followerCount
}`

type wireSignal struct {
	Timestamp           string  `json:"timestamp"`
	Action              string  `json:"action"`
	PredictedPriceMicro string  `json:"predictedPriceMicro"`
	ConfidenceBps       int64   `json:"confidenceBps"`
	Reasoning           string  `json:"reasoning"`
	ActualPriceMicro    *string `json:"actualPriceMicro"`
}

type wireBotState struct {
	BotID        string      `json:"botId"`
	LatestSignal *wireSignal `json:"latestSignal"`
	Accuracy24H  struct {
		RMSEMicro              int64 `json:"rmseMicro"`
		DirectionalAccuracyBps int64 `json:"directionalAccuracyBps"`
		TotalPredictions       int64 `json:"totalPredictions"`
		CorrectPredictions     int64 `json:"correctPredictions"`
		LastUpdated            int64 `json:"lastUpdated"`
	} `json:"accuracy24H"`
	FollowerCount int64 `json:"followerCount"`
}

// BotState queries the committed state back, applying the inverse fixed-point
// conversion to every micro-USD and basis-point field. Returns ErrNoState
// when the contract has nothing recorded yet.
func (c *Client) BotState(ctx context.Context) (*models.BotState, error) {
	var wire wireBotState
	if err := c.execute(ctx, botStateQuery, map[string]interface{}{}, &wire); err != nil {
		return nil, fmt.Errorf("query bot state: %w", err)
	}
	if wire.BotID == "" {
		return nil, ErrNoState
	}

	state := &models.BotState{
		BotID: wire.BotID,
		Accuracy24h: models.AccuracyMetrics{
			RMSE:                fixedpoint.FromMicroUSD(wire.Accuracy24H.RMSEMicro),
			DirectionalAccuracy: fixedpoint.FromBasisPoints(wire.Accuracy24H.DirectionalAccuracyBps) * 100,
			TotalPredictions:    wire.Accuracy24H.TotalPredictions,
			CorrectPredictions:  wire.Accuracy24H.CorrectPredictions,
			LastUpdated:         wire.Accuracy24H.LastUpdated,
		},
		FollowerCount: wire.FollowerCount,
	}

	if wire.LatestSignal != nil {
		ts, err := strconv.ParseInt(wire.LatestSignal.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse signal timestamp %q: %w", wire.LatestSignal.Timestamp, err)
		}
		price, err := fixedpoint.ParseMicroUSD(wire.LatestSignal.PredictedPriceMicro)
		if err != nil {
			return nil, fmt.Errorf("parse predicted price: %w", err)
		}
		sig := &models.Signal{
			Timestamp:      ts,
			Action:         models.Action(wire.LatestSignal.Action),
			PredictedPrice: price,
			Confidence:     fixedpoint.FromBasisPoints(wire.LatestSignal.ConfidenceBps),
			Reasoning:      wire.LatestSignal.Reasoning,
		}
		if wire.LatestSignal.ActualPriceMicro != nil {
			actual, err := fixedpoint.ParseMicroUSD(*wire.LatestSignal.ActualPriceMicro)
			if err != nil {
				return nil, fmt.Errorf("parse actual price: %w", err)
			}
			sig.ActualPrice = actual
		}
		state.LatestSignal = sig
	}
	return state, nil
}

// Config returns an independent copy of the current configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// UpdateConfig merges non-zero fields into the configuration.
func (c *Client) UpdateConfig(update Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if update.Endpoint != "" {
		c.cfg.Endpoint = update.Endpoint
	}
	if update.ApplicationID != "" {
		c.cfg.ApplicationID = update.ApplicationID
	}
	if update.ChainID != "" {
		c.cfg.ChainID = update.ChainID
	}
	if update.Timeout > 0 {
		c.cfg.Timeout = update.Timeout
	}
}
