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
	"runtime"
	"sync"
)

// block is a tile of the iteration space. Ranges are half-open logical
// indices.
type block struct {
	x0, x1 int
	y0, y1 int
	z0, z1 int
}

// blocks partitions the region [x0,x1)×[y0,y1)×[z0,z1) into tiles of at
// most bx×by×bz cells.
func blocks(x0, x1, y0, y1, z0, z1, bx, by, bz int) []block {
	var o []block
	for y := y0; y < y1; y += by {
		for z := z0; z < z1; z += bz {
			for x := x0; x < x1; x += bx {
				o = append(o, block{
					x0: x, x1: minInt(x+bx, x1),
					y0: y, y1: minInt(y+by, y1),
					z0: z, z1: minInt(z+bz, z1),
				})
			}
		}
	}
	return o
}

// stepBlocks tiles the cells a kernel writes on the axes a.
func stepBlocks(a Axis3, p *ComputationParameters) []block {
	x0, x1 := a.X.StepRange()
	y0, y1 := a.Y.StepRange()
	z0, z1 := a.Z.StepRange()
	return blocks(x0, x1, y0, y1, z0, z1, p.BlockX, p.BlockY, p.BlockZ)
}

// physicalBlocks tiles the physical cells of the axes a.
func physicalBlocks(a Axis3, p *ComputationParameters) []block {
	x0, x1 := a.X.PhysicalRange()
	y0, y1 := a.Y.PhysicalRange()
	z0, z1 := a.Z.PhysicalRange()
	return blocks(x0, x1, y0, y1, z0, z1, p.BlockX, p.BlockY, p.BlockZ)
}

// parallelBlocks concurrently runs f on every tile. Tiles are
// distributed round-robin over GOMAXPROCS goroutines. A panic in any
// goroutine is re-raised in the caller once all of them have returned.
func parallelBlocks(tiles []block, f func(b block)) {
	nprocs := runtime.GOMAXPROCS(0) // number of processors
	if nprocs > len(tiles) {
		nprocs = len(tiles)
	}
	var wg sync.WaitGroup
	var once sync.Once
	var failure interface{}
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { failure = r })
				}
			}()
			for ii := pp; ii < len(tiles); ii += nprocs {
				f(tiles[ii])
			}
		}(pp)
	}
	wg.Wait()
	if failure != nil {
		panic(failure)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
