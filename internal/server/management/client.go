// Package management is a thin client for the RabbitMQ management API.
// It translates domain operations (queues, broker users, channels) into
// authenticated HTTP calls and decodes the JSON responses into plain
// records.
package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pulseops/pulseguardian/internal/logging"
)

// DefaultUserTags is the tag set assigned to broker users created by
// this system.
const DefaultUserTags = "monitoring"

// Client talks to a single broker's management API. All calls carry the
// HTTP basic credentials configured here; there is no per-call override.
type Client struct {
	base     string
	user     string
	password string
	hc       *http.Client
	logger   logging.Logger
}

// NewClient constructs a Client for the management API rooted at
// baseURL (e.g. "http://localhost:15672").
func NewClient(baseURL, user, password string, logger logging.Logger) *Client {
	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		hc:       &http.Client{},
		logger:   logger.With("module", "management"),
	}
}

// call performs a single API request. An empty response body is a
// successful no-content result (create/delete). A non-empty body that
// is not valid JSON is returned as *Error identifying the request that
// produced it; that usually means an authentication failure or a
// broker-side error page, so it is never swallowed.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var raw []byte
	var body io.Reader
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("management: encoding payload for %s /api/%s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/"+path, body)
	if err != nil {
		return fmt.Errorf("management: building request %s /api/%s: %w", method, path, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug(ctx, "api request", "method", method, "path", path)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("management: %s /api/%s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("management: reading response of %s /api/%s: %w", method, path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if out == nil {
		out = &json.RawMessage{}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Method: method, Path: path, Payload: raw, Body: data}
	}
	return nil
}

// segment percent-encodes a single path component. Broker identifiers
// may contain "/", which the broker's own path splitting would
// otherwise misinterpret.
func segment(s string) string {
	return url.PathEscape(s)
}

// Queues lists queues, restricted to vhost when it is non-empty.
func (c *Client) Queues(ctx context.Context, vhost string) ([]Queue, error) {
	path := "queues"
	if vhost != "" {
		path = "queues/" + segment(vhost)
	}
	var out []Queue
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Queue fetches the detail record of a single queue.
func (c *Client) Queue(ctx context.Context, vhost, name string) (*Queue, error) {
	out := &Queue{}
	path := "queues/" + segment(vhost) + "/" + segment(name)
	if err := c.call(ctx, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteQueue removes a queue from the broker.
func (c *Client) DeleteQueue(ctx context.Context, vhost, name string) error {
	path := "queues/" + segment(vhost) + "/" + segment(name)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteAllQueues deletes every queue in the current listing. It is
// best-effort bulk cleanup, not atomic: a failure partway leaves the
// remainder undeleted.
func (c *Client) DeleteAllQueues(ctx context.Context) error {
	queues, err := c.Queues(ctx, "")
	if err != nil {
		return err
	}
	for _, q := range queues {
		if err := c.DeleteQueue(ctx, q.Vhost, q.Name); err != nil {
			return err
		}
	}
	return nil
}

// QueueBindings lists the bindings of a queue.
func (c *Client) QueueBindings(ctx context.Context, vhost, name string) ([]Binding, error) {
	path := "queues/" + segment(vhost) + "/" + segment(name) + "/bindings"
	var out []Binding
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// User fetches a broker user record. A missing user is not an error at
// this level: the broker answers with a JSON body whose "error" key is
// set, and the record is returned with Error populated for the caller
// to inspect.
func (c *Client) User(ctx context.Context, username string) (*User, error) {
	out := &User{}
	if err := c.call(ctx, http.MethodGet, "users/"+segment(username), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser creates or updates a broker user. The same call updates
// the password of an existing user.
func (c *Client) CreateUser(ctx context.Context, username, password, tags string) error {
	payload := map[string]string{"password": password, "tags": tags}
	return c.call(ctx, http.MethodPut, "users/"+segment(username), payload, nil)
}

// DeleteUser removes a broker user.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.call(ctx, http.MethodDelete, "users/"+segment(username), nil, nil)
}

// Channels lists the broker's open channels.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	if err := c.call(ctx, http.MethodGet, "channels", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Channel fetches the detail record of a single channel.
func (c *Client) Channel(ctx context.Context, name string) (*Channel, error) {
	out := &Channel{}
	if err := c.call(ctx, http.MethodGet, "channels/"+segment(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueueOwner resolves the broker user currently consuming from q. A
// queue with zero consumers has no identifiable owner and yields "".
// Only the first consumer is consulted; multiple consumers on one queue
// are not disambiguated.
func (c *Client) QueueOwner(ctx context.Context, q Queue) (string, error) {
	detail, err := c.Queue(ctx, q.Vhost, q.Name)
	if err != nil {
		return "", err
	}
	if detail.Consumers < 1 || len(detail.ConsumerDetails) == 0 {
		return "", nil
	}
	channel, err := c.Channel(ctx, detail.ConsumerDetails[0].ChannelDetails.Name)
	if err != nil {
		return "", err
	}
	return channel.User, nil
}
