package management

import "encoding/json"

// Queue is a broker queue record as returned by the management API.
type Queue struct {
	Name            string           `json:"name"`
	Vhost           string           `json:"vhost"`
	Consumers       int              `json:"consumers"`
	ConsumerDetails []ConsumerDetail `json:"consumer_details"`
}

// ConsumerDetail links a consumer to the channel it consumes on.
type ConsumerDetail struct {
	ChannelDetails ChannelDetails `json:"channel_details"`
}

// ChannelDetails carries the channel name referenced by a consumer.
type ChannelDetails struct {
	Name string `json:"name"`
}

// Channel is a broker channel record. User is the identity of the
// connection the channel belongs to.
type Channel struct {
	Name string `json:"name"`
	User string `json:"user"`
}

// User is a broker user record. Lookups of a missing user come back as
// a JSON body with the "error" key set, exposed here through Error.
// Tags is kept raw: brokers have returned both a string and an array
// over the years.
type User struct {
	Name   string          `json:"name"`
	Tags   json.RawMessage `json:"tags"`
	Error  string          `json:"error"`
	Reason string          `json:"reason"`
}

// Binding is a queue binding record.
type Binding struct {
	Source          string `json:"source"`
	Vhost           string `json:"vhost"`
	Destination     string `json:"destination"`
	DestinationType string `json:"destination_type"`
	RoutingKey      string `json:"routing_key"`
}
