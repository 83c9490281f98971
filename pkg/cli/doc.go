// Package cli implements the errorgen command line.
//
// Commands:
//
//	errorgen serve      run the fault injection server
//	errorgen load       drive randomized traffic at a server
//	errorgen validate   check a configuration file
//	errorgen version    print build information
package cli
