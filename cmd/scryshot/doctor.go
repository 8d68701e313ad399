package main

import (
	"fmt"
	"io"
	"time"

	"github.com/copyleftdev/scryshot/internal/browser"
	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const doctorCapture = "doctor.png"

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that a browser can be launched and can take a screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			// Screenshots stay in memory so the check leaves nothing on disk.
			fs := afero.NewMemMapFs()
			sessions := browser.NewManager(a.cfg, fs, a.logger)
			defer sessions.Shutdown(cmd.Context())

			start := time.Now()
			session, err := sessions.Acquire(cmd.Context(), a.cfg.Browser.Headless)
			if err != nil {
				return doctorFail(out, "launch browser", err)
			}
			defer sessions.Release(session)
			doctorPass(out, "launch browser", time.Since(start))

			start = time.Now()
			page, err := session.Page(cmd.Context())
			if err == nil {
				err = page.Navigate(cmd.Context(), "about:blank", a.cfg.Browser.NavigationTimeout)
			}
			if err != nil {
				return doctorFail(out, "load about:blank", err)
			}
			doctorPass(out, "load about:blank", time.Since(start))

			start = time.Now()
			if err := page.Screenshot(cmd.Context(), doctorCapture); err != nil {
				return doctorFail(out, "capture screenshot", err)
			}
			info, err := fs.Stat(doctorCapture)
			if err != nil || info.Size() == 0 {
				return doctorFail(out, "capture screenshot", fmt.Errorf("screenshot is empty"))
			}
			doctorPass(out, fmt.Sprintf("capture screenshot (%d bytes)", info.Size()), time.Since(start))
			return nil
		},
	}
}

func doctorPass(w io.Writer, check string, took time.Duration) {
	_, _ = scenario.SuccColor.Fprintf(w, "%s %s", scenario.SuccMark, check)
	_, _ = scenario.GrayColor.Fprintf(w, " (%s)\n", took.Round(time.Millisecond))
}

func doctorFail(w io.Writer, check string, err error) error {
	_, _ = scenario.FailColor.Fprintf(w, "%s %s: %v\n", scenario.FailMark, check, err)
	return &exitError{code: 2}
}
