// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package data embeds the SQL schema migrations into the server binary.
package data

import "embed"

// Migrations holds the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside [Migrations] holding the files.
const MigrationsDir = "migrations"
