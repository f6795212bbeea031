package database

// RunTx exposes runTx to the external test package
var RunTx = runTx
