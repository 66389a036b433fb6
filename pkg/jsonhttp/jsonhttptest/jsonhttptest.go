// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jsonhttptest runs HTTP requests against handlers and checks their
// JSON responses.
package jsonhttptest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/tabcat/zzzync/pkg/jsonhttp"
)

// Request sends a request with the client, fails the test when the response
// status differs from responseCode and runs the response checks of opts.
func Request(t *testing.T, client *http.Client, method, url string, responseCode int, opts ...Option) http.Header {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.header != nil {
		req.Header = o.header
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != responseCode {
		t.Errorf("got response status %s, want %v %s", resp.Status, responseCode, http.StatusText(responseCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, check := range o.checks {
		check(t, resp.Header, body)
	}
	return resp.Header
}

// Option configures a request or adds a response check.
type Option func(*options)

type options struct {
	header http.Header
	checks []func(t *testing.T, h http.Header, body []byte)
}

func WithRequestHeader(key, value string) Option {
	return func(o *options) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithExpectedJSONResponse checks that the body is the JSON encoding of
// response.
func WithExpectedJSONResponse(response interface{}) Option {
	return func(o *options) {
		o.checks = append(o.checks, func(t *testing.T, h http.Header, body []byte) {
			t.Helper()

			if v := h.Get("Content-Type"); v != jsonhttp.DefaultContentTypeHeader {
				t.Errorf("got content type %q, want %q", v, jsonhttp.DefaultContentTypeHeader)
			}
			want, err := json.Marshal(response)
			if err != nil {
				t.Fatal(err)
			}
			if got := bytes.TrimSpace(body); !bytes.Equal(got, want) {
				t.Errorf("got json response %s, want %s", got, want)
			}
		})
	}
}

// WithUnmarshalResponse decodes the JSON body into response.
func WithUnmarshalResponse(response interface{}) Option {
	return func(o *options) {
		o.checks = append(o.checks, func(t *testing.T, _ http.Header, body []byte) {
			t.Helper()

			if err := json.Unmarshal(body, response); err != nil {
				t.Fatalf("unmarshal response %s: %v", body, err)
			}
		})
	}
}

// WithPutResponseBody stores the raw body in b.
func WithPutResponseBody(b *[]byte) Option {
	return func(o *options) {
		o.checks = append(o.checks, func(_ *testing.T, _ http.Header, body []byte) {
			*b = body
		})
	}
}
