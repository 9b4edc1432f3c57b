// Copyright 2026 The Steward Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package perm applies file ownership and permission bits by name.
package perm

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// LookupIDs resolves a user and group name to numeric uid/gid.
func LookupIDs(owner, group string) (uid, gid int, err error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown user %q: %w", owner, err)
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown group %q: %w", group, err)
	}

	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric uid %q for user %q", u.Uid, owner)
	}
	gid, err = strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric gid %q for group %q", g.Gid, group)
	}
	return uid, gid, nil
}

// SetOwner changes the owner and group of path, both given by name.
func SetOwner(path, owner, group string) error {
	uid, gid, err := LookupIDs(owner, group)
	if err != nil {
		return err
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("failed to set ownership of %s to %s:%s: %w", path, owner, group, err)
	}
	return nil
}

// SetPermissions sets the permission bits of path.
func SetPermissions(path string, mode os.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set permissions of %s to %o: %w", path, mode, err)
	}
	return nil
}
