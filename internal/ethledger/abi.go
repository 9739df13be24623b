package ethledger

// escrowABI is the call surface of the deployed escrow contract. Deployments
// that do not emit ProjectCreated are still supported; see createdProjectID.
const escrowABI = `[
  {"type":"function","name":"nextProjectId","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"projects","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"amount","type":"uint256"},
     {"name":"freelancer","type":"address"},
     {"name":"client","type":"address"},
     {"name":"deadline","type":"uint256"},
     {"name":"isAccepted","type":"bool"},
     {"name":"isCompleted","type":"bool"}]},
  {"type":"function","name":"getProfile","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"bio","type":"string"},
     {"name":"avatar","type":"string"}]},
  {"type":"function","name":"createProject","stateMutability":"nonpayable",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"acceptTerms","stateMutability":"payable",
   "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"completeProject","stateMutability":"nonpayable",
   "inputs":[{"name":"projectId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"createOrUpdateProfile","stateMutability":"nonpayable",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"bio","type":"string"},
     {"name":"avatar","type":"string"}],
   "outputs":[]},
  {"type":"event","name":"ProjectCreated","anonymous":false,
   "inputs":[
     {"name":"projectId","type":"uint256","indexed":true},
     {"name":"freelancer","type":"address","indexed":true}]}
]`
