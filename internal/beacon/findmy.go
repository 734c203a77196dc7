package beacon

import "tinygo.org/x/bluetooth"

// Apple's Bluetooth SIG company identifier.
const appleCompanyID = 0x004C

// Apple manufacturer-data frame types that Find My accessories advertise.
const (
	frameOfflineFinding = 0x12
	frameNearbyAction   = 0x1E
)

// Service UUIDs advertised by offline-finding accessories.
var findMyServiceUUIDs = []bluetooth.UUID{
	bluetooth.New16BitUUID(0xFD6F), // offline finding
	bluetooth.New16BitUUID(0xFDAB), // continuity
}

// isFindMyFrame reports whether a manufacturer-data element carries an
// offline-finding or nearby-action frame. The first payload byte is the
// Apple frame type.
func isFindMyFrame(companyID uint16, data []byte) bool {
	if companyID != appleCompanyID || len(data) < 2 {
		return false
	}
	switch data[0] {
	case frameOfflineFinding, frameNearbyAction:
		return true
	}
	return false
}

// matchesFindMy reports whether a scan result looks like a Find My accessory,
// by service UUID or by manufacturer-data frame type.
func matchesFindMy(result bluetooth.ScanResult) bool {
	for _, uuid := range findMyServiceUUIDs {
		if result.HasServiceUUID(uuid) {
			return true
		}
	}
	for _, element := range result.ManufacturerData() {
		if isFindMyFrame(element.CompanyID, element.Data) {
			return true
		}
	}
	return false
}
