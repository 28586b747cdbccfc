package release

// ZsbindDotVersion represents the dot version for zsbind
var ZsbindDotVersion = "0.1.0"

// ABIVersion is the libzscript export set this version of zsbind binds against.
var ABIVersion = "1"
