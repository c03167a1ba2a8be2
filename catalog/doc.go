// Package catalog holds the device-class definitions consumed by the
// device layer: command vocabulary, answer patterns, conversion factors,
// error tables, recovery plans and flush policies.
//
// Definitions are declarative ClassDef values, compiled once into
// immutable Class values that are shared read-only by every device and
// session. The built-in catalog covers the SciGlob head sensor family
// (HT, F1, F2, FW, TR, SB, MA, MZ, MB, S1, S2), TETech temperature
// controllers, the HDC2080 humidity sensor, GlobalSat and Novatel GPS
// receivers and a streaming data logger. Deployments adjust it through
// YAML documents:
//
//	classes:
//	  - name: HT
//	    commands:
//	      get_temperature:
//	        factor: 100
//	        timeout: 6s
package catalog
