package actuator

/*

	The Lamp adapter sits aside /respiro/
	Any lighting sink that can take a brightness and a hue
	can stand in for the Hue bridge (tests use a fake).

*/

// Lamp is the output adapter for the lighting actuator.
// Pushes are fire-and-forget from the loop's perspective but
// must complete or fail before the next tick: no queuing.
type Lamp interface {
	TurnOn() error                 // make sure the lamp is lit before the loop starts
	SetBrightness(bri uint8) error // 0..254 device brightness
	SetHue(hue uint16) error       // 0..65535 color wheel
	SetSat(sat uint8) error        // 0..254 saturation
	Close() error                  // release the connection
	Type() string                  // ID for the output
}
