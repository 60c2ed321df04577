package xpvm

import "github.com/colorfulnotion/xpvm/xpvm/program"

func init() {
	initDispatchTable()
}

type opcodeHandler func(p *Processor, in program.Instruction)

// dispatchTable maps an opcode byte to its handler. A nil entry is an
// illegal instruction.
var dispatchTable [256]opcodeHandler

func initDispatchTable() {
	// Loads and stores
	dispatchTable[program.LDB] = loadHandler(1, false, loadI8)
	dispatchTable[program.LDB_IMM] = loadHandler(1, true, loadI8)
	dispatchTable[program.LDS] = loadHandler(2, false, loadI16)
	dispatchTable[program.LDS_IMM] = loadHandler(2, true, loadI16)
	dispatchTable[program.LDI] = loadHandler(4, false, loadI32)
	dispatchTable[program.LDI_IMM] = loadHandler(4, true, loadI32)
	dispatchTable[program.LDL] = loadHandler(8, false, loadU64)
	dispatchTable[program.LDL_IMM] = loadHandler(8, true, loadU64)
	dispatchTable[program.LDF] = loadHandler(4, false, loadF32)
	dispatchTable[program.LDF_IMM] = loadHandler(4, true, loadF32)
	dispatchTable[program.LDD] = loadHandler(8, false, loadU64)
	dispatchTable[program.LDD_IMM] = loadHandler(8, true, loadU64)
	dispatchTable[program.LDIMM] = handleLDIMM
	dispatchTable[program.LDIMM2] = handleLDIMM2
	dispatchTable[program.STB] = storeHandler(1, false, storeU8)
	dispatchTable[program.STB_IMM] = storeHandler(1, true, storeU8)
	dispatchTable[program.STS] = storeHandler(2, false, storeU16)
	dispatchTable[program.STS_IMM] = storeHandler(2, true, storeU16)
	dispatchTable[program.STI] = storeHandler(4, false, storeU32)
	dispatchTable[program.STI_IMM] = storeHandler(4, true, storeU32)
	dispatchTable[program.STL] = storeHandler(8, false, storeU64)
	dispatchTable[program.STL_IMM] = storeHandler(8, true, storeU64)
	dispatchTable[program.STF] = storeHandler(4, false, storeF32)
	dispatchTable[program.STF_IMM] = storeHandler(4, true, storeF32)
	dispatchTable[program.STD] = storeHandler(8, false, storeU64)
	dispatchTable[program.STD_IMM] = storeHandler(8, true, storeU64)
	dispatchTable[program.LDBLKID] = handleLDBLKID

	// Integer arithmetic
	dispatchTable[program.ADDL] = handleADDL
	dispatchTable[program.ADDL_IMM] = handleADDL_IMM
	dispatchTable[program.SUBL] = handleSUBL
	dispatchTable[program.SUBL_IMM] = handleSUBL_IMM
	dispatchTable[program.MULL] = handleMULL
	dispatchTable[program.MULL_IMM] = handleMULL_IMM
	dispatchTable[program.DIVL] = handleDIVL
	dispatchTable[program.DIVL_IMM] = handleDIVL_IMM
	dispatchTable[program.REML] = handleREML
	dispatchTable[program.REML_IMM] = handleREML_IMM
	dispatchTable[program.NEGL] = handleNEGL

	// Floating point
	dispatchTable[program.ADDD] = handleADDD
	dispatchTable[program.SUBD] = handleSUBD
	dispatchTable[program.MULD] = handleMULD
	dispatchTable[program.DIVD] = handleDIVD
	dispatchTable[program.NEGD] = handleNEGD
	dispatchTable[program.CVTLD] = handleCVTLD
	dispatchTable[program.CVTDL] = handleCVTDL

	// Shifts and bitwise
	dispatchTable[program.LSHIFT] = handleLSHIFT
	dispatchTable[program.LSHIFT_IMM] = handleLSHIFT_IMM
	dispatchTable[program.RSHIFT] = handleRSHIFT
	dispatchTable[program.RSHIFT_IMM] = handleRSHIFT_IMM
	dispatchTable[program.RSHIFTU] = handleRSHIFTU
	dispatchTable[program.RSHIFTU_IMM] = handleRSHIFTU_IMM
	dispatchTable[program.AND] = handleAND
	dispatchTable[program.OR] = handleOR
	dispatchTable[program.XOR] = handleXOR
	dispatchTable[program.ORNOT] = handleORNOT

	// Comparisons
	dispatchTable[program.CMPEQ] = handleCMPEQ
	dispatchTable[program.CMPEQ_IMM] = handleCMPEQ_IMM
	dispatchTable[program.CMPLE] = handleCMPLE
	dispatchTable[program.CMPLE_IMM] = handleCMPLE_IMM
	dispatchTable[program.CMPLT] = handleCMPLT
	dispatchTable[program.CMPLT_IMM] = handleCMPLT_IMM
	dispatchTable[program.CMPULE] = handleCMPULE
	dispatchTable[program.CMPULE_IMM] = handleCMPULE_IMM
	dispatchTable[program.CMPULT] = handleCMPULT
	dispatchTable[program.CMPULT_IMM] = handleCMPULT_IMM
	dispatchTable[program.FCMPEQ] = handleFCMPEQ
	dispatchTable[program.FCMPLE] = handleFCMPLE
	dispatchTable[program.FCMPLT] = handleFCMPLT

	// Branches
	dispatchTable[program.JMP] = handleJMP
	dispatchTable[program.JMP_REG] = handleJMP_REG
	dispatchTable[program.BTRUE] = handleBTRUE
	dispatchTable[program.BFALSE] = handleBFALSE

	// Blocks and ownership. LOCK..SIGALL stay unmapped.
	dispatchTable[program.ALLOC_BLK] = handleALLOC_BLK
	dispatchTable[program.ALLOC_PRIVATE_BLK] = handleALLOC_PRIVATE_BLK
	dispatchTable[program.ACQUIRE_BLK] = handleACQUIRE_BLK
	dispatchTable[program.RELEASE_BLK] = handleRELEASE_BLK
	dispatchTable[program.DTRAITS] = handleDTRAITS
	dispatchTable[program.RANNOTS] = handleRANNOTS
	dispatchTable[program.TOWNER] = handleTOWNER
	dispatchTable[program.ATRAITS] = handleATRAITS
	dispatchTable[program.CHAIN_BLK] = handleCHAIN_BLK

	// Calls
	dispatchTable[program.LDFUNC] = handleLDFUNC
	dispatchTable[program.LDFUNC_REG] = handleLDFUNC_REG
	dispatchTable[program.CALL] = handleCALL
	dispatchTable[program.CALLN] = handleCALLN
	dispatchTable[program.RET] = handleRET

	// Exceptions
	dispatchTable[program.THROW] = handleTHROW
	dispatchTable[program.RETRIEVE] = handleRETRIEVE

	// Processors
	dispatchTable[program.INIT_PROC] = handleINIT_PROC
	dispatchTable[program.JOIN] = handleJOIN
	dispatchTable[program.JOIN2] = handleJOIN2
	dispatchTable[program.WHOAMI] = handleWHOAMI
}
