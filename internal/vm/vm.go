// Package vm provides high-level VM lifecycle management.
// It combines the durable record store, the image and seed provisioner,
// and the process supervisor behind one Manager facade.
package vm
