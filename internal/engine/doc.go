// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor core shared by the server and client engines: read and write
// workers each owning one selector, the accept loop, the single setup
// dispatcher that builds sessions off the accept thread, and the
// decode/dispatch path from readable bytes to the Processor.
package engine
