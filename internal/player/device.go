package player

import "strconv"

// DeviceClass identifies the kind of hardware or software player that sent a
// HELO. Unknown device IDs map to DeviceUnknown with a synthesized model name.
type DeviceClass int

const (
	DeviceUnknown DeviceClass = iota
	DeviceSlimp3
	DeviceSqueezebox
	DeviceSoftsqueeze
	DeviceSqueezebox2
	DeviceTransporter
	DeviceSoftsqueeze3
	DeviceReceiver
	DeviceSqueezeslave
	DeviceController
	DeviceBoom
	DeviceSoftboom
	DeviceSqueezePlay
)

// deviceIDs maps the HELO device-ID byte to both a DeviceClass and a model name.
var deviceIDs = map[int]struct {
	class DeviceClass
	model string
}{
	1:  {DeviceSlimp3, "slimp3"},
	2:  {DeviceSqueezebox, "squeezebox"},
	3:  {DeviceSoftsqueeze, "softsqueeze"},
	4:  {DeviceSqueezebox2, "squeezebox2"},
	5:  {DeviceTransporter, "transporter"},
	6:  {DeviceSoftsqueeze3, "softsqueeze3"},
	7:  {DeviceReceiver, "receiver"},
	8:  {DeviceSqueezeslave, "squeezeslave"},
	9:  {DeviceController, "controller"},
	10: {DeviceBoom, "boom"},
	11: {DeviceSoftboom, "softboom"},
	12: {DeviceSqueezePlay, "squeezeplay"},
}

// classAndModelFromID resolves a HELO device-ID byte to a class and model
// name. Unknown IDs get DeviceUnknown and "unknown-<id>".
func classAndModelFromID(id int) (DeviceClass, string) {
	if v, ok := deviceIDs[id]; ok {
		return v.class, v.model
	}
	return DeviceUnknown, unknownModel(id)
}

func unknownModel(id int) string {
	return "unknown-" + strconv.Itoa(id)
}
