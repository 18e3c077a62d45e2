// Package dome implements the control logic of the observatory dome. It
// contains:
//
//   - Engine: one dome, driven through an hwio.Board and a persisted record
//   - Geometry: conversion between encoder ticks and azimuth degrees
//   - the rotation, homing and shutter sequences with their safety rules
//
// Each domectl command builds one Engine, performs one operation and exits;
// the Engine is not safe for concurrent use. Blocking operations poll the
// hardware with injectable clock functions so tests can run them without
// real time passing.
package dome
