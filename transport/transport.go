// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package transport

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// Response is the status and body of a server reply. It doubles as the
// error returned for non 2xx replies.
type Response struct {
	Status int
	Body   io.ReadCloser
}

// IsError reports whether the status is outside the 2xx range.
func (r *Response) IsError() bool {
	return r.Status < 200 || r.Status >= 300
}

func (r *Response) Error() string {
	return fmt.Sprintf("status code %d", r.Status)
}

// ReadAll drains and closes the body.
func (r *Response) ReadAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return ioutil.ReadAll(r.Body)
}

// Transporter is the network client used for every request of the
// registration and profile flows.
type Transporter interface {
	Get(url string) (*Response, error)
	Del(url string) (*Response, error)
	Put(url string, body []byte, ct string) (*Response, error)
	PutJSON(url string, body []byte) (*Response, error)
}

type httpTransporter struct {
	baseURL   string
	user      string
	pass      string
	userAgent string
	client    *http.Client
}

// NewHTTPTransporter returns a Transporter talking to baseURL with basic auth.
// A nil rootCAs uses the system pool.
func NewHTTPTransporter(baseURL, user, pass, userAgent, proxyServer string, rootCAs *x509.CertPool) Transporter {
	tr := &http.Transport{
		TLSClientConfig:     &tls.Config{RootCAs: rootCAs},
		TLSHandshakeTimeout: 30 * time.Second,
	}
	if proxyServer != "" {
		u, err := url.Parse(proxyServer)
		if err != nil {
			log.Errorln("[textsecure] ignoring invalid proxy", proxyServer, err)
		} else {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	client := &http.Client{
		Timeout:   15 * time.Second,
		Transport: tr,
	}
	return &httpTransporter{baseURL, user, pass, userAgent, client}
}

func (ht *httpTransporter) do(method, url string, body []byte, ct string) (*Response, error) {
	var br io.Reader
	if body != nil {
		br = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, ht.baseURL+url, br)
	if err != nil {
		return nil, err
	}
	if ht.userAgent != "" {
		req.Header.Set("X-Signal-Agent", ht.userAgent)
	}
	if ct != "" {
		req.Header.Add("Content-Type", ct)
	}
	if ht.user != "" {
		req.SetBasicAuth(ht.user, ht.pass)
	}
	resp, err := ht.client.Do(req)
	if err != nil {
		return nil, err
	}
	r := &Response{
		Status: resp.StatusCode,
		Body:   resp.Body,
	}

	log.Debugf("[textsecure] %s %s %d", method, url, r.Status)

	return r, nil
}

func (ht *httpTransporter) Get(url string) (*Response, error) {
	return ht.do(http.MethodGet, url, nil, "")
}

func (ht *httpTransporter) Del(url string) (*Response, error) {
	return ht.do(http.MethodDelete, url, nil, "")
}

func (ht *httpTransporter) Put(url string, body []byte, ct string) (*Response, error) {
	return ht.do(http.MethodPut, url, body, ct)
}

func (ht *httpTransporter) PutJSON(url string, body []byte) (*Response, error) {
	return ht.Put(url, body, "application/json")
}
