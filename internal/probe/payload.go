// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/getprobe/internal/getapp"
)

// isoLayout matches the naive local timestamps the GetApp API has always received.
const isoLayout = "2006-01-02T15:04:05.000000"

// bboxCorners are the fixed prefixes of the synthetic area of interest.
// Two random digits are appended to each coordinate.
var bboxCorners = [4]string{"34.472849", "31.519675", "34.476277", "31.522433"}

// DeviceID returns a synthetic device id of the form <prefix>-NNNN.
func DeviceID(prefix string, intn func(int) int) string {
	return fmt.Sprintf("%s-%d", prefix, 1000+intn(9000))
}

// BoundingBox returns one randomised bounding box.
func BoundingBox(intn func(int) int) string {
	parts := make([]string, len(bboxCorners))
	for i, c := range bboxCorners {
		parts[i] = fmt.Sprintf("%s%d%d", c, intn(10), intn(10))
	}
	return strings.Join(parts, ",")
}

// BoundingBoxes returns n randomised bounding boxes.
func BoundingBoxes(n int, intn func(int) int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = BoundingBox(intn)
	}
	return out
}

func isoTime(t time.Time) string {
	return t.Format(isoLayout)
}

// DiscoveryPayload describes the synthetic device.
func DiscoveryPayload(deviceID string, now time.Time) getapp.DiscoveryRequest {
	ts := isoTime(now)
	return getapp.DiscoveryRequest{
		DiscoveryType: "get-map",
		General: getapp.DiscoveryGeneral{
			PersonalDevice: getapp.PersonalDevice{
				Name:           "user-1",
				IDNumber:       "idNumber-123",
				PersonalNumber: "personalNumber-123",
			},
			SituationalDevice: getapp.SituationalDevice{
				Weather:        23,
				Bandwidth:      30,
				Time:           ts,
				OperativeState: true,
				Power:          94,
				Location:       getapp.Location{Lat: "33.4", Long: "23.3", Alt: "344"},
			},
			PhysicalDevice: getapp.PhysicalDevice{
				OS:                "android",
				MAC:               "00-B0-D0-63-C2-26",
				IP:                "129.2.3.4",
				ID:                deviceID,
				SerialNumber:      deviceID,
				PossibleBandwidth: "Yes",
				AvailableStorage:  "38142328832",
			},
		},
		SoftwareData: getapp.SoftwareData{
			Formation: "yatush",
			Platform: getapp.Platform{
				Name:           "Olar",
				PlatformNumber: "1",
				VirtualSize:    0,
				Components:     []any{},
			},
		},
		MapData: getapp.MapData{
			ProductID:            "dummy product",
			ProductName:          "no-name",
			ProductVersion:       "3",
			ProductType:          "osm",
			Description:          "bla-bla",
			BoundingBox:          "1,2,3,4",
			CRS:                  "WGS84",
			ImagingTimeStart:     ts,
			ImagingTimeEnd:       ts,
			CreationDate:         ts,
			Source:               "DJI Mavic",
			Classification:       "raster",
			Compartmentalization: "N/A",
			Region:               "ME",
			Sensor:               "CCD",
			PrecisionLevel:       "3.14",
			Resolution:           "0.12",
		},
	}
}

// downloadStatus builds a progress report for catalogID.
func downloadStatus(deviceID, catalogID, status string, now time.Time) getapp.DownloadStatusRequest {
	ts := isoTime(now)
	return getapp.DownloadStatusRequest{
		DeviceID:       deviceID,
		CatalogID:      catalogID,
		DownloadStart:  ts,
		BitNumber:      0,
		DownloadData:   32,
		CurrentTime:    ts,
		DeliveryStatus: status,
		Type:           "map",
	}
}
