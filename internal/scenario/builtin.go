package scenario

import (
	"time"

	"github.com/copyleftdev/scryshot/internal/scenariotypes"
)

// Builtins returns the verification scenarios shipped with the harness.
// Navigation targets are relative to the configured base URL. Canvas waits
// leave the settle unset so the configured readiness default applies.
func Builtins() []scenariotypes.Scenario {
	visualNav := scenariotypes.Navigate("/")
	visualNav.Timeout = 30 * time.Second

	return []scenariotypes.Scenario{
		{
			Name:        "verify",
			Description: "Wait for the 3D canvas and capture the loaded world",
			Steps: []scenariotypes.Step{
				scenariotypes.Navigate("/"),
				scenariotypes.Await(scenariotypes.ElementPresent("canvas", 10*time.Second)),
				scenariotypes.Capture("verification.png"),
			},
		},
		{
			Name:        "visual-enhancements",
			Description: "Capture the rendered world after visual changes",
			Steps: []scenariotypes.Step{
				visualNav,
				scenariotypes.Await(scenariotypes.ElementPresent("canvas", 30*time.Second)),
				scenariotypes.Capture("visual_enhancements.png"),
			},
		},
		{
			Name:        "voxel-layer",
			Description: "Capture the voxel layer once the game has rendered",
			Steps: []scenariotypes.Step{
				scenariotypes.Navigate("/"),
				scenariotypes.Await(scenariotypes.ElementPresent("canvas", 30*time.Second)),
				scenariotypes.Capture("voxel_layer.png"),
			},
		},
		{
			Name:        "ui-split",
			Description: "Capture the main UI, open the Research Lab and capture the shop modal",
			Steps: []scenariotypes.Step{
				scenariotypes.Navigate("/"),
				scenariotypes.Await(scenariotypes.TextPresent("VOXEL WALKER", 0).WithSettle(0)),
				scenariotypes.Capture("main_ui.png"),
				scenariotypes.Click("text=Research Lab"),
				scenariotypes.Await(scenariotypes.TextPresent("Research & Development", 0).WithSettle(0)),
				scenariotypes.Capture("shop_modal.png"),
			},
		},
	}
}
