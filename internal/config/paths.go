// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package config

import "path/filepath"

// ResolveRelativePaths rewrites every SLURM unit's file list so a
// relative entry is resolved against configDir (spec.md section 6.3),
// the directory containing the loaded configuration file, rather than
// the process's working directory. Absolute paths are left untouched.
func (c *Config) ResolveRelativePaths(configDir string) {
	for i := range c.Units {
		u := &c.Units[i]
		if u.Type != UnitTypeSLURM {
			continue
		}
		for j, f := range u.Files {
			if !filepath.IsAbs(f) {
				u.Files[j] = filepath.Join(configDir, f)
			}
		}
	}
}
