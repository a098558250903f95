// Command quillview is an interactive SVG viewer with 2D, 3D, and stereo VR
// camera modes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/ui"
)

func main() {
	var (
		use3D      = flag.Bool("3d", false, "start with the 3D perspective camera")
		useVR      = flag.Bool("vr", false, "start with the stereo VR camera")
		jobs       = flag.Int("jobs", 0, "scene build worker count (0 = one per CPU)")
		background = flag.String("background", "light", "background color: light, dark, or transparent")
		uiLevel    = flag.String("ui", "all", "debug UI visibility: none, stats, or all")
		profile    = flag.Bool("profile", false, "log FPS and memory statistics")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] scene.svg\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *use3D && *useVR {
		log.Fatal("-3d and -vr are mutually exclusive")
	}

	mode := camera.Mode2D
	switch {
	case *useVR:
		mode = camera.ModeVR
	case *use3D:
		mode = camera.Mode3D
	}

	var backgroundColor common.Color
	switch *background {
	case "light":
		backgroundColor = common.LightBackground
	case "dark":
		backgroundColor = common.DarkBackground
	case "transparent":
		backgroundColor = common.TransparentBackground
	default:
		log.Fatalf("unknown background %q (want light, dark, or transparent)", *background)
	}

	var visibility ui.Visibility
	switch *uiLevel {
	case "none":
		visibility = ui.VisibilityNone
	case "stats":
		visibility = ui.VisibilityStats
	case "all":
		visibility = ui.VisibilityAll
	default:
		log.Fatalf("unknown ui level %q (want none, stats, or all)", *uiLevel)
	}

	options := []viewer.ViewerBuilderOption{
		viewer.WithScenePath(flag.Arg(0)),
		viewer.WithMode(mode),
		viewer.WithBackgroundColor(backgroundColor),
		viewer.WithVisibility(visibility),
		viewer.WithJobs(*jobs),
	}
	if *profile {
		options = append(options, viewer.WithProfiling())
	}

	v, err := viewer.NewViewer(options...)
	if err != nil {
		log.Fatalf("failed to start viewer: %v", err)
	}
	v.Run()
}
