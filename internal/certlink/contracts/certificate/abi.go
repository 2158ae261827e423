package certificate

// CertificateNFTABI is the ABI of the deployed certificate contract.
const CertificateNFTABI = `[
  {"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
  {"type":"event","name":"CertificateMinted","anonymous":false,"inputs":[
    {"indexed":true,"internalType":"uint256","name":"tokenId","type":"uint256"},
    {"indexed":false,"internalType":"string","name":"certificateId","type":"string"},
    {"indexed":true,"internalType":"address","name":"student","type":"address"},
    {"indexed":false,"internalType":"string","name":"courseName","type":"string"},
    {"indexed":false,"internalType":"uint256","name":"score","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"issueDate","type":"uint256"}]},
  {"type":"function","name":"mintCertificate","stateMutability":"nonpayable","inputs":[
    {"internalType":"string","name":"_certificateId","type":"string"},
    {"internalType":"string","name":"_courseName","type":"string"},
    {"internalType":"string","name":"_studentName","type":"string"},
    {"internalType":"address","name":"_studentWallet","type":"address"},
    {"internalType":"uint256","name":"_score","type":"uint256"},
    {"internalType":"string","name":"_tokenURI","type":"string"}],
   "outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
  {"type":"function","name":"getCertificate","stateMutability":"view","inputs":[
    {"internalType":"uint256","name":"_tokenId","type":"uint256"}],
   "outputs":[
    {"internalType":"string","name":"certificateId","type":"string"},
    {"internalType":"string","name":"courseName","type":"string"},
    {"internalType":"string","name":"studentName","type":"string"},
    {"internalType":"address","name":"studentWallet","type":"address"},
    {"internalType":"uint256","name":"score","type":"uint256"},
    {"internalType":"uint256","name":"issueDate","type":"uint256"}]},
  {"type":"function","name":"verifyCertificate","stateMutability":"view","inputs":[
    {"internalType":"string","name":"_certificateId","type":"string"}],
   "outputs":[
    {"internalType":"bool","name":"isValid","type":"bool"},
    {"internalType":"string","name":"courseName","type":"string"},
    {"internalType":"string","name":"studentName","type":"string"},
    {"internalType":"uint256","name":"score","type":"uint256"},
    {"internalType":"uint256","name":"issueDate","type":"uint256"}]},
  {"type":"function","name":"getTotalCertificates","stateMutability":"view","inputs":[],
   "outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
  {"type":"function","name":"checkCertificate","stateMutability":"view","inputs":[
    {"internalType":"address","name":"_student","type":"address"},
    {"internalType":"string","name":"_courseName","type":"string"}],
   "outputs":[{"internalType":"bool","name":"","type":"bool"}]},
  {"type":"function","name":"tokensOfOwner","stateMutability":"view","inputs":[
    {"internalType":"address","name":"_owner","type":"address"}],
   "outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}]}
]`

const (
	MethodMintCertificate      = "mintCertificate"
	MethodGetCertificate       = "getCertificate"
	MethodVerifyCertificate    = "verifyCertificate"
	MethodGetTotalCertificates = "getTotalCertificates"
	MethodCheckCertificate     = "checkCertificate"
	MethodTokensOfOwner        = "tokensOfOwner"

	EventCertificateMinted = "CertificateMinted"
)
