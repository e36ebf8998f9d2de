// Package peer talks to the customer directory and auth services.
// Every call is best-effort: callers treat results as advisory and
// the order flow never depends on a peer being reachable.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KretovDmitry/order-store-service/internal/config"
	"github.com/KretovDmitry/order-store-service/pkg/limiter"
	"github.com/KretovDmitry/order-store-service/pkg/logger"
)

var (
	ErrUnavailable     = errors.New("peer service unavailable")
	ErrUnknownCustomer = errors.New("customer not found")
	ErrInvalidToken    = errors.New("invalid auth token")
)

type Client struct {
	client  *http.Client
	limiter *limiter.Limiter
	logger  logger.Logger
	config  *config.Config
}

func NewClient(config *config.Config, logger logger.Logger) (*Client, error) {
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}

	return &Client{
		client:  &http.Client{Timeout: config.Peers.Timeout},
		limiter: limiter.New(config.Peers.RateInterval, config.Peers.RateBurst),
		logger:  logger,
		config:  config,
	}, nil
}

// ValidateCustomer asks the customer directory whether the customer
// exists. The order store keeps no foreign key: a negative answer is
// reported to the caller, who may log it and proceed.
func (c *Client) ValidateCustomer(ctx context.Context, customerID string) error {
	if c.config.Peers.CustomerAddr == "" {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	u := fmt.Sprintf("%s/customer/findcustomerbyid?customerid=%s",
		c.config.Peers.CustomerAddr, url.QueryEscape(customerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}

	return nil
}

// Middleware validates a bearer token with the auth service when one
// accompanies the request. Validation is advisory: a failed or slow
// check is logged and the request proceeds regardless.
func (c *Client) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		if token := r.Header.Get("Authorization"); token != "" {
			token = strings.TrimPrefix(token, "Bearer ")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), c.config.Peers.Timeout)
				defer cancel()

				if err := c.ValidateAuthToken(ctx, token); err != nil {
					c.logger.Warnf("auth token not confirmed: %s", err)
				}
			}()
		}

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// ValidateAuthToken checks a bearer token against the auth service.
func (c *Client) ValidateAuthToken(ctx context.Context, token string) error {
	if c.config.Peers.AuthAddr == "" {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.Peers.AuthAddr+"/auth/validate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return ErrInvalidToken
	case res.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode)
	}

	return nil
}
