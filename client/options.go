package client

import (
	"time"

	"httpfetch/http"
)

type Options struct {
	Send    SendOptions
	Receive ReceiveOptions
	Timeout TimeoutOptions
}

type SendOptions struct {
	Encode http.EncodeOptions
}

type ReceiveOptions struct {
	Decode http.DecodeOptions
}

type TimeoutOptions struct {
	// ResponseHeader bounds the wait for the response header block
	// after the request is written. Zero means no timeout.
	ResponseHeader time.Duration

	// Body bounds the body read once it has been requested.
	// Zero means no timeout.
	Body time.Duration
}
