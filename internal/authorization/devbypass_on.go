//go:build devauth

package authorization

const devBypassCompiled = true
