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

// Package rtm is a reverse time migration engine for seismic imaging.
//
// For every shot, the source wavefield is propagated forward through a
// velocity model with an explicit finite difference scheme. Only the
// boundary rings of each step are kept. The recorded traces are then
// propagated backwards in time while the source wavefield is rebuilt
// from the saved rings, and the two wavefields are correlated into an
// image of the shot. Shot images are stacked into the final image.
package rtm

// Version gives the version number.
const Version = "1.0.0"
