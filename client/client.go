// Package client talks to a siptools package building service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
)

// A Connection represents a connection with a package building service.
// It can be shared between multiple goroutines.
type Connection struct {
	// The server this connection is to
	HostURL string

	Token string

	// PollInterval is the time between status requests in WaitForBuild.
	// Defaults to 5 seconds.
	PollInterval time.Duration

	// Client makes the requests. If nil a client with a ten minute
	// timeout is used.
	Client *http.Client
}

// Exported errors
var (
	ErrNotFound       = errors.New("Package not found")
	ErrNotAuthorized  = errors.New("Access Denied")
	ErrConflict       = errors.New("Package exists or is being built")
	ErrUnexpectedResp = errors.New("Unexpected Response Code")
	ErrBuild          = errors.New("error building package")
)

// A ResponseError is a failed request which the server explained.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("Received status %d from server: %s", e.Status, e.Message)
}

// BuildRequest describes the package to build. Paths are relative to the
// source root of the server. Exactly one of Directory and Files is set.
type BuildRequest struct {
	Label     string     `json:"label,omitempty"`
	Directory string     `json:"directory,omitempty"`
	Files     []FileSpec `json:"files,omitempty"`
	Metadata  []string   `json:"metadata,omitempty"`
}

// FileSpec names one file of a package. Path is the name inside the
// package and defaults to Source.
type FileSpec struct {
	Source  string `json:"source"`
	Path    string `json:"path,omitempty"`
	Format  string `json:"format,omitempty"`
	Version string `json:"version,omitempty"`
}

// BuildInfo is the state of a build as reported by the server.
type BuildInfo struct {
	Name   string
	Status string // one of "queued", "building", "finished" or "error"
	Files  int64
	Errors []string
}

// Build asks the server to build the package name. It returns the path of
// the status route for the new build.
func (c *Connection) Build(name string, br BuildRequest) (string, error) {
	buf, err := json.Marshal(br)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest("POST", c.HostURL+"/sip/"+url.PathEscape(name), bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", responseError(resp)
	}
	return resp.Header.Get("Location"), nil
}

// Status returns the state of a build. It does not wait for the build to
// finish.
func (c *Connection) Status(name string) (BuildInfo, error) {
	var result BuildInfo
	v, err := c.doJasonGet("/sip/" + url.PathEscape(name) + "/status")
	if err != nil {
		return result, err
	}
	result.Name, _ = v.GetString("Name")
	result.Status, _ = v.GetString("Status")
	result.Files, _ = v.GetInt64("Files")
	result.Errors, _ = v.GetStringArray("Err")
	return result, nil
}

// WaitForBuild polls the server until the named build is finished. It
// returns ErrBuild, wrapped with the reasons given by the server, if the
// build failed.
func (c *Connection) WaitForBuild(ctx context.Context, name string) error {
	delay := c.PollInterval
	if delay <= 0 {
		delay = 5 * time.Second
	}
	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		info, err := c.Status(name)
		if err != nil {
			return err
		}
		switch info.Status {
		case "finished":
			return nil
		case "error":
			return fmt.Errorf("%w: %s", ErrBuild, strings.Join(info.Errors, "; "))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download copies the named package tar to w.
func (c *Connection) Download(w io.Writer, name string) error {
	req, err := http.NewRequest("GET", c.HostURL+"/sip/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// List returns the names of the packages on the server beginning with
// prefix.
func (c *Connection) List(prefix string) ([]string, error) {
	path := c.HostURL + "/sip"
	if prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}
	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	var result []string
	err = json.NewDecoder(resp.Body).Decode(&result)
	return result, err
}

// Delete removes the named package from the server.
func (c *Connection) Delete(name string) error {
	req, err := http.NewRequest("DELETE", c.HostURL+"/sip/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return responseError(resp)
	}
	return nil
}

func (c *Connection) doJasonGet(path string) (*jason.Object, error) {
	req, err := http.NewRequest("GET", c.HostURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	return jason.NewObjectFromReader(resp.Body)
}

// responseError turns an unsuccessful response into an error.
func responseError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrNotAuthorized
	case http.StatusConflict:
		return ErrConflict
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if len(msg) == 0 {
		return ErrUnexpectedResp
	}
	return &ResponseError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}

// do performs an http request. The default client has a timeout so we
// don't hang indefinitely should the server never close the connection.
func (c *Connection) do(req *http.Request) (*http.Response, error) {
	if c.Token != "" {
		req.Header.Add("X-Api-Key", c.Token)
	}
	client := c.Client
	if client == nil {
		client = defaultClient
	}
	return client.Do(req)
}

var defaultClient = &http.Client{
	Timeout: 10 * time.Minute,
}
