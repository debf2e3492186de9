// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package getapp

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/getprobe/internal/metrics"
)

// Route templates used as the endpoint metric label.
const (
	RouteLogin                = "api/login"
	RouteDiscover             = "api/device/discover"
	RouteImportCreate         = "api/map/import/create"
	RouteImportStatus         = "api/map/import/status/{id}"
	RouteUpdateDownloadStatus = "api/delivery/updateDownloadStatus"
	RoutePrepareDelivery      = "api/delivery/prepareDelivery"
	RoutePreparedDelivery     = "api/delivery/preparedDelivery/{id}"
	RouteInventoryUpdates     = "api/map/inventory/updates"
)

// Download file types.
const (
	FileTypeGPKG = "gpkg"
	FileTypeJSON = "json"
)

// HealthEndpoints are the per-service health routes, in check order.
var HealthEndpoints = []string{
	"/api/delivery/checkHealth",
	"/api/device/checkHealth",
	"/api/offering/checkHealth",
	"/api/map/checkHealth",
}

// Login authenticates and stores the returned access token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return &APIError{Sentinel: ErrMissingCredentials, Op: "login", Endpoint: RouteLogin, Type: ErrorTypeRequest}
	}
	var out LoginResponse
	_, err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		route:  RouteLogin,
		target: RouteLogin,
		body:   LoginRequest{Username: username, Password: password},
		out:    &out,
	})
	if err != nil {
		return err
	}
	if out.AccessToken == "" {
		return &APIError{Sentinel: ErrBadResponse, Op: "login", Endpoint: RouteLogin, Status: http.StatusOK,
			Type: ErrorTypeDecode, Body: "accessToken missing"}
	}
	c.SetToken(out.AccessToken)
	return nil
}

// Discover registers the device and its capabilities.
func (c *Client) Discover(ctx context.Context, req DiscoveryRequest) error {
	_, err := c.do(ctx, call{
		op:     "discover",
		method: http.MethodPost,
		route:  RouteDiscover,
		target: RouteDiscover,
		body:   req,
	})
	return err
}

// CreateImport requests a map export and returns its import request id.
func (c *Client) CreateImport(ctx context.Context, deviceID string, props MapProperties) (string, error) {
	var out CreateImportResponse
	_, err := c.do(ctx, call{
		op:     "create_import",
		method: http.MethodPost,
		route:  RouteImportCreate,
		target: RouteImportCreate,
		body:   CreateImportRequest{DeviceID: deviceID, MapProperties: props},
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	return out.ImportRequestID, nil
}

// ImportStatus returns the current state of an import request.
func (c *Client) ImportStatus(ctx context.Context, importRequestID string) (ImportStatusResponse, error) {
	var out ImportStatusResponse
	_, err := c.do(ctx, call{
		op:     "import_status",
		method: http.MethodGet,
		route:  RouteImportStatus,
		target: "api/map/import/status/" + url.PathEscape(importRequestID),
		out:    &out,
	})
	return out, err
}

// UpdateDownloadStatus reports delivery progress for a catalog item.
func (c *Client) UpdateDownloadStatus(ctx context.Context, req DownloadStatusRequest) error {
	if req.Type == "" {
		req.Type = "map"
	}
	_, err := c.do(ctx, call{
		op:     "update_download_status",
		method: http.MethodPost,
		route:  RouteUpdateDownloadStatus,
		target: RouteUpdateDownloadStatus,
		body:   req,
	})
	return err
}

// PrepareDelivery asks the server to package a catalog item for the device.
func (c *Client) PrepareDelivery(ctx context.Context, catalogID, deviceID string) error {
	_, err := c.do(ctx, call{
		op:     "prepare_delivery",
		method: http.MethodPost,
		route:  RoutePrepareDelivery,
		target: RoutePrepareDelivery,
		body:   PrepareDeliveryRequest{CatalogID: catalogID, DeviceID: deviceID, ItemType: "map"},
	})
	return err
}

// PreparedDelivery returns the prepared package. A relative URL is resolved
// against the base URL.
func (c *Client) PreparedDelivery(ctx context.Context, catalogID string) (PreparedDeliveryResponse, error) {
	var out PreparedDeliveryResponse
	_, err := c.do(ctx, call{
		op:     "prepared_delivery",
		method: http.MethodGet,
		route:  RoutePreparedDelivery,
		target: "api/delivery/preparedDelivery/" + url.PathEscape(catalogID),
		out:    &out,
	})
	if err != nil {
		return out, err
	}
	out.URL = c.AbsoluteURL(out.URL)
	return out, nil
}

// AbsoluteURL resolves a delivery URL. Empty stays empty.
func (c *Client) AbsoluteURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	if strings.HasPrefix(u, "/") {
		return c.base + u
	}
	return c.base + "/" + u
}

// Download streams the file at rawURL and discards it, returning the size.
func (c *Client) Download(ctx context.Context, rawURL, fileType string) (int64, error) {
	n, err := c.do(ctx, call{
		op:     "download_" + fileType,
		method: http.MethodGet,
		route:  "download/" + fileType,
		target: rawURL,
		sink:   io.Discard,
	})
	if n > 0 {
		metrics.AddDownloadBytes(fileType, n)
	}
	return n, err
}

// UpdateInventory marks the catalog item as delivered on the device.
func (c *Client) UpdateInventory(ctx context.Context, deviceID, catalogID string) error {
	_, err := c.do(ctx, call{
		op:     "update_inventory",
		method: http.MethodPost,
		route:  RouteInventoryUpdates,
		target: RouteInventoryUpdates,
		body: InventoryRequest{
			DeviceID:  deviceID,
			Inventory: map[string]string{catalogID: "delivery"},
		},
	})
	return err
}

// CheckHealth probes one service health endpoint.
func (c *Client) CheckHealth(ctx context.Context, endpoint string) error {
	route := strings.TrimLeft(endpoint, "/")
	_, err := c.do(ctx, call{
		op:     "check_health",
		method: http.MethodGet,
		route:  route,
		target: endpoint,
	})
	return err
}
