// Package entity maps device data points (dps) to user-facing state.
//
// Switch covers plugs, diffusers and humidifiers:
//
//	dps 1    power
//	dps 101  diffuser mist mode ("1" continuous, "2" intermittent, else off)
//	dps 6    humidifier fog level ("0" off, "1" low, "2" medium, else high)
//	dps 11   humidifier LED lights
//	dps 101  humidifier water low
//
// Light covers dimmers and RGB bulbs:
//
//	dps 1  power
//	dps 2  mode ("white" or "colour")
//	dps 3  brightness (25-255)
//	dps 4  colour temperature (0-255, reported in mireds 153-500)
//	dps 5  colour (rrggbb0hhhssvv, channels scaled by brightness)
//
// Entities subscribe to their session with Start and keep the last applied
// state; data points missing from a status leave the previous value.
package entity
