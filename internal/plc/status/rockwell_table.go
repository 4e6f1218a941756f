package status

// RockwellEntry is one row of the per-session error-code decoder table
// (spec.md S7): a CIP general/extended status pair maps to a taxonomy Code
// plus short/long diagnostic text a caller can display.
type RockwellEntry struct {
	General   uint8
	Extended  uint16
	HasExt    bool
	Code      Code
	ShortDesc string
	LongDesc  string
}

// rockwellTable is keyed on (general status, extended status) so an entry
// with HasExt=false matches any extended status for that general code
// (looked up only when no more specific (general,extended) row exists).
var rockwellTable = []RockwellEntry{
	{General: 0x00, Code: OK, ShortDesc: "Success", LongDesc: "Service executed successfully"},
	{General: 0x01, Code: RemoteErr, ShortDesc: "Connection failure", LongDesc: "A connection related service failed along the connection path"},
	{General: 0x02, Code: NoMem, ShortDesc: "Resource unavailable", LongDesc: "Resources needed for the object to perform the requested service were unavailable"},
	{General: 0x03, Code: BadParam, ShortDesc: "Invalid parameter value", LongDesc: "See extended status for the specific parameter that is invalid"},
	{General: 0x04, Code: NotFound, ShortDesc: "Path segment error", LongDesc: "The path segment identifier or segment syntax was not understood"},
	{General: 0x05, Code: NotFound, ShortDesc: "Path destination unknown", LongDesc: "The path references a class, instance, or attribute that does not exist"},
	{General: 0x06, Code: TooLarge, ShortDesc: "Partial transfer", LongDesc: "Only part of the expected data was transferred; more data is available (fragmentation continuation)"},
	{General: 0x07, Code: RemoteErr, ShortDesc: "Connection lost", LongDesc: "The messaging connection was lost"},
	{General: 0x08, Code: Unsupported, ShortDesc: "Service not supported", LongDesc: "The requested service was not implemented or not defined for this object class/instance"},
	{General: 0x09, Code: BadData, ShortDesc: "Invalid attribute value", LongDesc: "Invalid attribute data detected"},
	{General: 0x0A, Code: RemoteErr, ShortDesc: "Attribute list error", LongDesc: "An attribute in the get/set attribute list request was not found"},
	{General: 0x0B, Code: Busy, ShortDesc: "Already in requested mode/state", LongDesc: "The object is already in the mode/state being requested"},
	{General: 0x0C, Code: NotAllowed, ShortDesc: "Object state conflict", LongDesc: "The object cannot perform the requested service in its current state/mode"},
	{General: 0x0D, Code: Duplicate, ShortDesc: "Object already exists", LongDesc: "The requested instance of an object already exists"},
	{General: 0x0E, Code: NotAllowed, ShortDesc: "Attribute not settable", LongDesc: "A request to modify a non-modifiable attribute was received"},
	{General: 0x0F, Code: NotAllowed, ShortDesc: "Permission denied", LongDesc: "A permission/privilege check failed"},
	{General: 0x10, Code: NotAllowed, ShortDesc: "Device state conflict", LongDesc: "The device's current mode/state prohibits the requested service"},
	{General: 0x11, Code: TooLarge, ShortDesc: "Reply data too large", LongDesc: "The data to be transmitted in the response exceeds the predefined maximum"},
	{General: 0x12, Code: NotAllowed, ShortDesc: "Fragmentation of a primitive value", LongDesc: "The service specified an operation that would fragment a primitive data value"},
	{General: 0x13, Code: BadData, ShortDesc: "Not enough data", LongDesc: "The service did not supply enough data to perform the requested operation"},
	{General: 0x14, Code: Unsupported, ShortDesc: "Attribute not supported", LongDesc: "The attribute specified in the request is not supported"},
	{General: 0x15, Code: TooLarge, ShortDesc: "Too much data", LongDesc: "The service supplied more data than expected"},
	{General: 0x16, Code: NotFound, ShortDesc: "Object does not exist", LongDesc: "The requested object instance does not exist"},
	{General: 0x17, Code: NotAllowed, ShortDesc: "Service fragmentation sequence not in progress", LongDesc: "A fragmentation continuation was received out of sequence"},
	{General: 0x18, Code: NoData, ShortDesc: "No stored attribute data", LongDesc: "The attribute data of this object was not saved prior to the requested service"},
	{General: 0x19, Code: RemoteErr, ShortDesc: "Store operation failure", LongDesc: "The attribute data of this object was not saved due to a failure during the attempt"},
	{General: 0x1A, Code: TooLarge, ShortDesc: "Routing failure, request too large", LongDesc: "The service request packet was too large for transmission on a network in the routing path"},
	{General: 0x1B, Code: TooLarge, ShortDesc: "Routing failure, response too large", LongDesc: "The service response packet was too large for transmission on a network in the routing path"},
	{General: 0x1C, Code: BadData, ShortDesc: "Missing attribute list entry data", LongDesc: "The service did not supply an attribute in a list of attributes that was needed"},
	{General: 0x1D, Code: Duplicate, ShortDesc: "Invalid attribute value list", LongDesc: "An attribute in a list of attributes has an invalid value"},
	{General: 0x1E, Code: RemoteErr, ShortDesc: "Embedded service error", LongDesc: "At least one sub-reply in a Multiple Service Packet failed; inspect each sub-reply"},
	{General: 0x1F, Code: RemoteErr, ShortDesc: "Vendor specific error", LongDesc: "A vendor-specific error occurred; see extended status"},
	{General: 0x20, Code: BadParam, ShortDesc: "Invalid parameter", LongDesc: "A parameter associated with the request was invalid"},
	{General: 0x21, Code: Duplicate, ShortDesc: "Write-once value already written", LongDesc: "An attempt was made to write to a write-once-value-already-written attribute"},
	{General: 0x22, Code: RemoteErr, ShortDesc: "Invalid reply received", LongDesc: "An invalid reply was received (e.g. reply service code does not match request)"},
	{General: 0x25, Code: BadParam, ShortDesc: "Key segment error", LongDesc: "The key segment was included as the first segment and was not valid"},
	{General: 0x26, Code: BadParam, ShortDesc: "Path size invalid", LongDesc: "The size of the path which was sent was either not large enough or too large"},
	{General: 0x27, Code: BadData, ShortDesc: "Unexpected attribute in list", LongDesc: "An attempt was made to set an attribute that is not able to be set at this time"},
	{General: 0x28, Code: NotFound, ShortDesc: "Invalid member ID", LongDesc: "The member ID specified in the request does not exist in the specified class/instance/attribute"},
	{General: 0x29, Code: NotAllowed, ShortDesc: "Member not settable", LongDesc: "A request to modify a non-modifiable member was received"},
	{General: 0x2A, Code: RemoteErr, ShortDesc: "Group 2 only server failure", LongDesc: "This error is returned if a Group 2 only server general failure is received"},
	{General: 0x2B, Code: RemoteErr, ShortDesc: "Unknown Modbus error", LongDesc: "A CIP to Modbus translator received an unknown Modbus exception code"},
	{General: 0x2C, Code: BadParam, ShortDesc: "Attribute not gettable", LongDesc: "A request to read a non-readable attribute was received"},
}

// DecodeRockwellStatus resolves a CIP general/extended status pair to the
// library's status taxonomy and diagnostic text. Unknown general codes map
// to RemoteErr with a generic description.
func DecodeRockwellStatus(general uint8, extended uint16, haveExtended bool) RockwellEntry {
	var fallback *RockwellEntry
	for i := range rockwellTable {
		e := &rockwellTable[i]
		if e.General != general {
			continue
		}
		if e.HasExt {
			if haveExtended && e.Extended == extended {
				return *e
			}
			continue
		}
		fallback = e
	}
	if fallback != nil {
		return *fallback
	}
	return RockwellEntry{
		General:   general,
		Extended:  extended,
		HasExt:    haveExtended,
		Code:      RemoteErr,
		ShortDesc: "Unknown general status",
		LongDesc:  "The device returned a CIP general status code not in the local decoder table",
	}
}
