// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package storage

import "fmt"

// Constructor builds a Backend from its JSON-decoded config section.
// This is the Go-native replacement for DB_INIT_FUNC's dotted-path
// import: backends are chosen by a configured string name instead of a
// runtime code loader.
type Constructor func() (Backend, error)

var constructors = map[string]Constructor{}

// Register adds a named backend constructor to the factory table.
// Called from each backend's package init.
func Register(name string, ctor Constructor) {
	constructors[name] = ctor
}

// New builds the Backend registered under name.
func New(name string) (Backend, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for %q", name)
	}
	return ctor()
}
