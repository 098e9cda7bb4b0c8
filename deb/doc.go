// Package deb provides a pure Go library for assembling Debian binary packages.
//
// # Design Philosophy
//
// The package operates in-memory, treating a .deb as a structured object that
// can be read from and written to streams (io.Reader/io.Writer). This avoids
// a dependency on 'dpkg-deb' for the byte-level assembly.
//
// # Features
//
//   - Read and parse .deb files from any io.Reader.
//   - Create new packages from scratch or patch an existing input package.
//   - Modify control metadata, maintainer scripts, and payload files.
//   - Generate valid .deb archives with zstd or gzip tarball compression.
//     Archive timestamps come from the current time, so the output is not
//     byte-for-byte reproducible.
//   - Debian version iteration bumping (BumpVersion).
package deb
