// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonhttp

import (
	"encoding/json"
	"net/http"

	"resenje.org/web"
)

var methodNotAllowedBody = func() string {
	b, err := json.Marshal(StatusResponse{
		Message: http.StatusText(http.StatusMethodNotAllowed),
		Code:    http.StatusMethodNotAllowed,
	})
	if err != nil {
		panic(err)
	}
	return string(b)
}()

// MethodHandler routes requests by method. Other methods get a JSON 405
// response with the Allow header listing the routed ones.
type MethodHandler map[string]http.Handler

func (h MethodHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	web.HandleMethods(h, methodNotAllowedBody, DefaultContentTypeHeader, w, r)
}

func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	NotFound(w, nil)
}
