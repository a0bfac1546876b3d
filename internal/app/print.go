package app

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/pkg/engine"
)

// PrintInference writes inf in the block format used by the CLI. Slots are
// printed in key order.
func PrintInference(w io.Writer, inf engine.Inference) {
	if !inf.IsUnderstood {
		fmt.Fprintln(w, "Didn't understand the command")
		return
	}
	fmt.Fprintln(w, "{")
	fmt.Fprintf(w, "  intent : '%s'\n", inf.Intent)
	fmt.Fprintln(w, "  slots : {")
	for _, k := range slices.Sorted(maps.Keys(inf.Slots)) {
		fmt.Fprintf(w, "    %s : '%s'\n", k, inf.Slots[k])
	}
	fmt.Fprintln(w, "  }")
	fmt.Fprintln(w, "}")
}

// PrintDevices writes a capture device listing.
func PrintDevices(w io.Writer, backend string, devices []capture.DeviceInfo) {
	fmt.Fprintf(w, "Capture devices (%s)\n", backend)
	if len(devices) == 0 {
		fmt.Fprintln(w, "    (none)")
		return
	}
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = " (default)"
		}
		fmt.Fprintf(w, "    %d: %s%s\n", d.Index, d.Name, mark)
	}
}
