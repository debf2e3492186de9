// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package getapp

// Import request statuses with special meaning to the probe.
const (
	ImportStatusDone  = "Done"
	ImportStatusError = "Error"
)

// Delivery status reported through updateDownloadStatus.
const DeliveryStatusStart = "Start"

// LoginRequest is the body of POST api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpireAt     string `json:"expireAt,omitempty"`
}

// DiscoveryRequest is the body of POST api/device/discover.
type DiscoveryRequest struct {
	DiscoveryType string           `json:"discoveryType"`
	General       DiscoveryGeneral `json:"general"`
	SoftwareData  SoftwareData     `json:"softwareData"`
	MapData       MapData          `json:"mapData"`
}

type DiscoveryGeneral struct {
	PersonalDevice    PersonalDevice    `json:"personalDevice"`
	SituationalDevice SituationalDevice `json:"situationalDevice"`
	PhysicalDevice    PhysicalDevice    `json:"physicalDevice"`
}

type PersonalDevice struct {
	Name           string `json:"name"`
	IDNumber       string `json:"idNumber"`
	PersonalNumber string `json:"personalNumber"`
}

type SituationalDevice struct {
	Weather        int      `json:"weather"`
	Bandwidth      int      `json:"bandwidth"`
	Time           string   `json:"time"`
	OperativeState bool     `json:"operativeState"`
	Power          int      `json:"power"`
	Location       Location `json:"location"`
}

type Location struct {
	Lat  string `json:"lat"`
	Long string `json:"long"`
	Alt  string `json:"alt"`
}

type PhysicalDevice struct {
	OS                string `json:"OS"`
	MAC               string `json:"MAC"`
	IP                string `json:"IP"`
	ID                string `json:"ID"`
	SerialNumber      string `json:"serialNumber"`
	PossibleBandwidth string `json:"possibleBandwidth"`
	AvailableStorage  string `json:"availableStorage"`
}

type SoftwareData struct {
	Formation string   `json:"formation"`
	Platform  Platform `json:"platform"`
}

type Platform struct {
	Name           string `json:"name"`
	PlatformNumber string `json:"platformNumber"`
	VirtualSize    int    `json:"virtualSize"`
	Components     []any  `json:"components"`
}

type MapData struct {
	ProductID            string `json:"productId"`
	ProductName          string `json:"productName"`
	ProductVersion       string `json:"productVersion"`
	ProductType          string `json:"productType"`
	Description          string `json:"description"`
	BoundingBox          string `json:"boundingBox"`
	CRS                  string `json:"crs"`
	ImagingTimeStart     string `json:"imagingTimeStart"`
	ImagingTimeEnd       string `json:"imagingTimeEnd"`
	CreationDate         string `json:"creationDate"`
	Source               string `json:"source"`
	Classification       string `json:"classification"`
	Compartmentalization string `json:"compartmentalization"`
	Region               string `json:"region"`
	Sensor               string `json:"sensor"`
	PrecisionLevel       string `json:"precisionLevel"`
	Resolution           string `json:"resolution"`
}

// CreateImportRequest is the body of POST api/map/import/create.
type CreateImportRequest struct {
	DeviceID      string        `json:"deviceId"`
	MapProperties MapProperties `json:"mapProperties"`
}

type MapProperties struct {
	ProductName      string `json:"productName"`
	ProductID        string `json:"productId"`
	ZoomLevel        int    `json:"zoomLevel"`
	BoundingBox      string `json:"boundingBox"`
	TargetResolution int    `json:"targetResolution"`
	LastUpdateAfter  int    `json:"lastUpdateAfter"`
}

// CreateImportResponse identifies the asynchronous import.
type CreateImportResponse struct {
	ImportRequestID string `json:"importRequestId"`
	Status          string `json:"status,omitempty"`
}

// ImportStatusResponse is returned by GET api/map/import/status/{id}.
type ImportStatusResponse struct {
	ImportRequestID string `json:"importRequestId,omitempty"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
}

// Terminal reports whether the import finished, successfully or not.
func (r ImportStatusResponse) Terminal() bool {
	return r.Status == ImportStatusDone || r.Status == ImportStatusError
}

// DownloadStatusRequest is the body of POST api/delivery/updateDownloadStatus.
type DownloadStatusRequest struct {
	DeviceID       string `json:"deviceId"`
	CatalogID      string `json:"catalogId"`
	DownloadStart  string `json:"downloadStart"`
	BitNumber      int    `json:"bitNumber"`
	DownloadData   int    `json:"downloadData"`
	CurrentTime    string `json:"currentTime"`
	DeliveryStatus string `json:"deliveryStatus"`
	Type           string `json:"type"`
}

// PrepareDeliveryRequest is the body of POST api/delivery/prepareDelivery.
type PrepareDeliveryRequest struct {
	CatalogID string `json:"catalogId"`
	DeviceID  string `json:"deviceId"`
	ItemType  string `json:"itemType"`
}

// PreparedDeliveryResponse is returned by GET api/delivery/preparedDelivery/{id}.
type PreparedDeliveryResponse struct {
	CatalogID string `json:"catalogId,omitempty"`
	Status    string `json:"status,omitempty"`
	URL       string `json:"url"`
}

// InventoryRequest is the body of POST api/map/inventory/updates. Inventory
// maps catalog ids to their delivery state.
type InventoryRequest struct {
	DeviceID  string            `json:"deviceId"`
	Inventory map[string]string `json:"inventory"`
}
