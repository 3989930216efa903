// Package httpnode implements the HTTP call node: its parameter tree, the
// reducers that edit it and the outbound request it describes.
//
// The node keeps its whole configuration under a single httpRequest group
// in inputParams:
//
//	httpRequest
//	├── method          GET, POST, ...
//	├── url             without query string
//	├── timeout         milliseconds, 1000..600000
//	├── headers         name/value pairs
//	├── params          query name/value pairs
//	├── requestBody
//	│   ├── type        none | x-www-form-urlencoded | json | text
//	│   └── args        one cached sub-tree per body type
//	└── authentication
//	    ├── type        none | apiKey | bearer | custom
//	    ├── header      header name for custom
//	    └── authKey
//
// Switching the body type only moves the active marker; the cached
// sub-trees of the other types are kept so switching back restores them.
package httpnode
