/*
Copyright © 2021 the RTM authors.
This file is part of RTM.

RTM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RTM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RTM.  If not, see <http://www.gnu.org/licenses/>.
*/

package rtmutil

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seismicimaging/rtm"
)

// setSmallRun configures a small synthetic survey writing to dir.
func setSmallRun(dir string) {
	Cfg.Set("SyntheticModel", "testdata/layered.toml")
	Cfg.Set("VelocityFile", "")
	Cfg.Set("TraceFile", filepath.Join(dir, "traces.ncf"))
	Cfg.Set("OutputFile", filepath.Join(dir, "image.ncf"))
	Cfg.Set("PlotFile", filepath.Join(dir, "image.png"))
	Cfg.Set("LogFile", "")
	Cfg.Set("Order", 4)
	Cfg.Set("BoundaryLength", 10)
	Cfg.Set("SourceFrequency", 25.0)
	Cfg.Set("Workers", 2)
	Cfg.Set("Modelling.ShotCount", 2)
	Cfg.Set("Modelling.FirstShot", 10)
	Cfg.Set("Modelling.ShotSpacing", 20)
	Cfg.Set("Modelling.SourceDepth", 2)
	Cfg.Set("Modelling.ReceiverDepth", 2)
	Cfg.Set("Modelling.RecordingTime", 0.3)
	Cfg.Set("NormWriter.Every", 20)
	Cfg.Set("NormWriter.Path", filepath.Join(dir, "norms.csv"))
	Cfg.Set("SnapshotWriter.Every", 50)
	Cfg.Set("SnapshotWriter.Dir", dir)
	Cfg.Set("Collector", "two-propagation")
	Cfg.Set("Compression", "zstd")
}

func TestModelRunPlot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping the command line workflow in short mode")
	}
	dir := t.TempDir()
	setSmallRun(dir)

	for _, cmd := range []string{"model", "run", "plot"} {
		Root.SetArgs([]string{cmd})
		if err := Root.Execute(); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
	}

	g, err := rtm.ReadTracesNCF(filepath.Join(dir, "traces.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	if ids := g.ShotIDs(); len(ids) != 2 {
		t.Errorf("shots %v", ids)
	}
	m, hash, err := rtm.ReadMigrationNCF(filepath.Join(dir, "image.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Shots != 2 || m.Nx != 40 || m.Nz != 30 {
		t.Errorf("image %d×%d of %d shots", m.Nx, m.Nz, m.Shots)
	}
	if hash != ConfigHash(Cfg) {
		t.Errorf("configuration hash %q != %q", hash, ConfigHash(Cfg))
	}
	for _, f := range []string{"image.png", "image.log", "traces.log"} {
		if fi, err := os.Stat(filepath.Join(dir, f)); err != nil || fi.Size() == 0 {
			t.Errorf("%s: %v", f, err)
		}
	}
	norms, err := ioutil.ReadFile(filepath.Join(dir, "norms.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(norms), "shot,phase,step,norm\n") || !strings.Contains(string(norms), ",reconstructed,") {
		t.Errorf("norms file:\n%s", norms)
	}

	for _, phase := range []string{"forward", "backward", "reconstructed"} {
		files, err := filepath.Glob(filepath.Join(dir, "shot*_"+phase+".ncf"))
		if err != nil || len(files) != 2 {
			t.Errorf("%s snapshots: %v %v", phase, files, err)
			continue
		}
		if steps, _, err := rtm.ReadSnapshotsNCF(files[0]); err != nil || len(steps) == 0 {
			t.Errorf("%s: %d steps, %v", files[0], len(steps), err)
		}
	}

	Cfg.Set("PlotSlice", 1)
	Root.SetArgs([]string{"plot"})
	if err := Root.Execute(); !rtm.IsKind(err, rtm.DataBoundsError) {
		t.Errorf("slice outside of the image: %v", err)
	}
	Cfg.Set("PlotSlice", 0)
}

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOutput(&b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "RTM v" + rtm.Version + "\n"; b.String() != want {
		t.Errorf("%q != %q", b.String(), want)
	}
}
