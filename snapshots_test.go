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

package rtm

import (
	"path/filepath"
	"testing"
)

func TestSnapshotWriter(t *testing.T) {
	p := testParams(t, 2, 2, SecondOrder)
	g, _ := testGrid(t, p, 5, 1, 4, 1000, 1)
	dir := t.TempDir()
	sw := NewSnapshotWriter(2, dir)
	sw.Log = nil
	cs := Callbacks{sw}

	f := g.Get(PressureCurr)
	x0, _, _, _, z0, _ := physicalBounds(g.Window)
	for step := 1; step <= 5; step++ {
		f.Set(float64(step), x0+1, 0, z0+2)
		cs.AfterForwardStep(3, step, g)
	}
	if len(sw.Files()) != 0 {
		t.Fatalf("files written before the backward pass: %v", sw.Files())
	}
	cs.BeforeBackwardPropagation(3, g)
	files := sw.Files()
	if len(files) != 1 || files[0] != filepath.Join(dir, "shot3_forward.ncf") {
		t.Fatalf("files %v", files)
	}
	steps, pr, err := ReadSnapshotsNCF(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0] != 2 || steps[1] != 4 {
		t.Errorf("steps %v", steps)
	}
	if want := []int{2, 1, 4, 5}; len(pr.Shape) != 4 || pr.Shape[1] != want[1] ||
		pr.Shape[2] != want[2] || pr.Shape[3] != want[3] {
		t.Fatalf("shape %v, want %v", pr.Shape, want)
	}
	if v := pr.Get(1, 0, 2, 1); different(v, 4, ioTolerance) {
		t.Errorf("step 4 sample %g", v)
	}

	for step := 4; step >= 1; step-- {
		cs.AfterBackwardStep(3, step, g)
		cs.AfterFetchStep(3, step-1, g)
	}
	cs.BeforeShotStacking(3, nil)
	if n := len(sw.Files()); n != 3 {
		t.Errorf("%d files after stacking", n)
	}
	cs.AfterForwardStep(4, 2, g)
	if err = sw.Close(); err != nil {
		t.Fatal(err)
	}
	if n := len(sw.Files()); n != 4 {
		t.Errorf("%d files after closing", n)
	}
}

func TestSnapshotWriterError(t *testing.T) {
	p := testParams(t, 2, 2, SecondOrder)
	g, _ := testGrid(t, p, 5, 1, 4, 1000, 1)
	sw := NewSnapshotWriter(1, filepath.Join(t.TempDir(), "missing"))
	sw.Log = nil
	sw.AfterForwardStep(0, 1, g)
	sw.BeforeBackwardPropagation(0, g)
	if err := sw.Err(); !IsKind(err, CollaboratorIOError) {
		t.Errorf("want a collaborator error, got %v", err)
	}
	sw.AfterForwardStep(1, 1, g)
	if err := sw.Close(); !IsKind(err, CollaboratorIOError) {
		t.Errorf("close: %v", err)
	}
	if len(sw.Files()) != 0 {
		t.Errorf("files %v", sw.Files())
	}
}
